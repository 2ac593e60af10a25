package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/inferloop/dqcore/pkg/constants"
)

type Flags struct {
	ConfigFile  string
	SuiteFile   string
	Environment string
	Version     bool
}

func ParseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to application configuration file")
	flag.StringVar(&flags.SuiteFile, "suite", "checks.yaml", "Path to check suite file")
	flag.StringVar(&flags.Environment, "env", "", "Deployment environment selecting *_targets overrides")
	flag.BoolVar(&flags.Version, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n%s\n\n", constants.AppDescription)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flags.Version {
		info := GetBuildInfo()
		fmt.Printf("Version: %s\n", info.Version)
		fmt.Printf("Git Commit: %s\n", info.GitCommit)
		fmt.Printf("Build Date: %s\n", info.BuildDate)
		fmt.Printf("Go Version: %s\n", info.GoVersion)
		fmt.Printf("Platform: %s\n", info.Platform)
		os.Exit(0)
	}

	return flags
}
