package main

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/debtrust/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "debtrust: %v\n", err)
		os.Exit(1)
	}
}
