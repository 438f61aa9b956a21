package main

import "github.com/davarch/pipewatch/cmd/pipewatch/cli"

func main() {
	cli.Execute()
}
