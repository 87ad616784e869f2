package main

import (
	"github.com/BioHazard786/Wavecall/cmd"
	"github.com/BioHazard786/Wavecall/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
