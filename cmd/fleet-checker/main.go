package main

import "github.com/oshokin/bitaxe-fleet/cmd/fleet-checker/cmd"

func main() {
	cmd.Execute()
}
