package main

import (
	"os"

	cmd "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/cmd/main"
)

func main() {
	os.Exit(cmd.Run())
}
