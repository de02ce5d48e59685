package main

import "github.com/notargets/goebfv/cmd"

func main() {
	cmd.Execute()
}
