package main

import "github.com/encodeous/trellis/cmd"

func main() {
	cmd.Execute()
}
