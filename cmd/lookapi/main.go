package main

import "github.com/phanngoc/lookapi/internal/cli"

func main() {
	cli.Execute()
}
