package main

import (
	"pb-analyzer/cmd"
)

func main() {
	cmd.Execute()
}
