package main

import "southwinds.dev/winvault/cli/cmd"

func main() {
	cmd.Execute()
}
