package main

import "github.com/nhle/smarttask/internal/cli"

func main() {
	cli.Execute()
}
