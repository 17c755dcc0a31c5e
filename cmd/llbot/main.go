package main

import "llbot/internal/cli"

func main() {
	cli.Execute()
}
