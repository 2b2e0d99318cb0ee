package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"vario-ng/internal/config"
)

func main() {
	var configPath string
	var useSim bool
	flag.StringVar(&configPath, "config", "./vario.yaml", "Path to YAML config")
	flag.BoolVar(&useSim, "sim", false, "Feed the pipeline from the flight simulator instead of real sensors")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if useSim {
		cfg.Sim.Enable = true
	}

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// errExit wraps fatal startup errors so run stays testable.
func errExit(stage string, err error) error {
	return fmt.Errorf("%s failed: %w", stage, err)
}
