package main

import "github.com/oshokin/bitaxe-fleet/cmd/fleet-deployer/cmd"

func main() {
	cmd.Execute()
}
