package main

import (
	"github.com/waybeam/crsfpwm/pkg/cli/tx"
)

//go-build: CGO_ENABLED=0

func main() {
	tx.Main()
}
