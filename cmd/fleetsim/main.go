package main

import "github.com/mtransit/fleetsim/internal/adapters/cli"

func main() {
	cli.Execute()
}
