package main

import "cast-extractor/internal/cli"

func main() {
	cli.Execute()
}
