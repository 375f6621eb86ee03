package main

import "github.com/evanofslack/cddns/internal/cli"

func main() {
	cli.Execute()
}
