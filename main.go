package main

import (
	"github.com/cachersdb/cachers/cmd"
)

func main() {
	cmd.Execute()
}
