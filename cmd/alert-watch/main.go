package main

import "github.com/clinicport/emergency-alerts/cmd/alert-watch/cmd"

func main() {
	cmd.Execute()
}
