package main

import (
	"os"

	"github.com/jason-s-yu/tablehost/internal/cli"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
