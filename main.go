package main

import (
	"os"

	"github.com/spigell/zhipin-responder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
