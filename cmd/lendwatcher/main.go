package main

import (
	"lending-risk-engine/internal/cli"
)

func main() {
	cli.Execute()
}
