package main

import (
	"os"

	"github.com/openlot/openlot/core/coreservice"
)

func main() {
	if err := coreservice.Run(); err != nil {
		os.Exit(1)
	}
}
