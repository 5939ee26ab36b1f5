package main

import "github.com/clinicport/emergency-alerts/cmd/alert-raise/cmd"

func main() {
	cmd.Execute()
}
