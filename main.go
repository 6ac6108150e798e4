package main

import "steadyrate/cmd"

func main() {
	cmd.Execute()
}
