package main

import (
	"os"

	"github.com/m5stack/m5doc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
