package main

import "github.com/deploymenttheory/go-shellshock/cmd"

func main() {
	cmd.Execute()
}
