package main

import "github.com/vietddude/relihub/internal/cli"

func main() {
	cli.Execute()
}
