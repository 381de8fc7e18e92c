package main

import (
	"nathanbeddoewebdev/dialctl/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()
	cmd.Execute()
}
