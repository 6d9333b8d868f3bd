package main

import "github.com/emiliopalmerini/splitlab/internal/cli"

func main() {
	cli.Execute()
}
