package main

import (
	"os"
	_ "time/tzdata"

	"github.com/BemreSTR/net-usage/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
