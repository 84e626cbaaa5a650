package main

import "github.com/qobs-build/shogun/cmd"

func main() {
	cmd.Execute()
}
