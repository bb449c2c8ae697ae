package main

import "vilehvh/internal/cli"

func main() {
	cli.Execute()
}
