package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"truckplanner/internal/cli"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	cli.SetVersion(version)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}
