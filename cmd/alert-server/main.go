package main

import "github.com/clinicport/emergency-alerts/cmd/alert-server/cmd"

func main() {
	cmd.Execute()
}
