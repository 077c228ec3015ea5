package main

import "github.com/funvibe/funscript/pkg/cli"

func main() {
	cli.Run()
}
