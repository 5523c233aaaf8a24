package main

import (
	"github.com/joho/godotenv"

	"github.com/armavita/meta-ads-mcp/internal/cli"
)

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	cli.Execute()
}
