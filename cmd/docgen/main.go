package main

import (
	"os"

	"github.com/fichesante/backend/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
