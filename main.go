package main

import "github.com/mpapenbr/racesim/cmd"

func main() {
	cmd.Execute()
}
