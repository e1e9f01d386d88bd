package main

import "github.com/subx-cli/subx/internal/cli"

func main() {
	cli.Run()
}
