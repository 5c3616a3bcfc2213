package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/gwrecharge/internal/glue"
	"github.com/chrissnell/gwrecharge/internal/sweep"
	"github.com/chrissnell/gwrecharge/pkg/config"
)

func main() {
	yamlFile := flag.String("yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Test")
	fmt.Println("==================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	provider := config.NewYAMLProvider(*yamlFile)
	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Configuration rejected: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration is valid")

	fmt.Println("\nServer:")
	fmt.Printf("  listen:           %s:%d\n", cfg.Server.ListenAddr, cfg.Server.Port)
	fmt.Printf("  TLS:              %v\n", cfg.Server.Cert != "")
	fmt.Printf("  concurrent runs:  %d\n", cfg.Server.MaxConcurrentRuns)

	fmt.Println("\nStorage:")
	fmt.Printf("  backend:          %s\n", cfg.Storage.Backend)
	if cfg.Storage.SQLitePath != "" {
		fmt.Printf("  sqlite path:      %s\n", cfg.Storage.SQLitePath)
	}

	rc := cfg.Recharge
	fmt.Println("\nRecharge defaults:")
	fmt.Printf("  Sy range:         %g - %g\n", rc.Sy.Min, rc.Sy.Max)
	fmt.Printf("  Cru range:        %g - %g\n", rc.Cru.Min, rc.Cru.Max)
	fmt.Printf("  RASmax range:     %g - %g mm (%s)\n", rc.RASmax.Min, rc.RASmax.Max, rc.Resolution)
	fmt.Printf("  Tmelt / CM:       %g °C / %g mm/°C/day\n", rc.Tmelt, rc.CM)
	fmt.Printf("  delay:            %d days\n", rc.DelayDays)
	if rc.CutoffEnabled {
		fmt.Printf("  RMSE cutoff:      %g mm\n", rc.RMSECutoff)
	} else {
		fmt.Println("  RMSE cutoff:      best so far")
	}
	limits := rc.Limits
	if len(limits) == 0 {
		limits = glue.DefaultLimits
	}
	fmt.Printf("  limits:           %v\n", limits)

	grid, err := sweep.Grid(rc.Cru, rc.RASmax, rc.Resolution)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Grid error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n✓ Each run evaluates %d grid points\n", len(grid))
}
