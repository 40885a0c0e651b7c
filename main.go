package main

import (
	"fmt"
	"os"

	"github.com/ascentapp/ascent/backend"
	"github.com/ascentapp/ascent/frontend"
)

func main() {
	mode := "frontend"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "backend":
		backend.RunBackend()
	case "frontend":
		frontend.RunFrontend()
	default:
		fmt.Printf("unknown mode %q: expected 'backend' or 'frontend'\n", mode)
		os.Exit(1)
	}
}
