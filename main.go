package main

import "drink-exchange/internal/cli"

func main() {
	cli.Execute()
}
