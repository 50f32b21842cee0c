package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// versionString reports the build metadata set via ldflags.
func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "dartrefs",
		Usage:    "Dart declaration usage analyzer",
		Version:  versionString(),
		Metadata: make(map[string]interface{}),
		Description: `dartrefs counts how often every class, mixin, enum, extension, typedef
and (optionally) function of a Dart or Flutter project is referenced, separates
uses inside the declaring file from uses in importing files, and lists unused
and commented-out declarations along with files that are safe to delete.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DARTREFS_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		Before: startProfile,
		After:  stopProfile,
		Commands: []*cli.Command{
			analyzeCmd(),
			candidatesCmd(),
			reportCmd(),
			configCmd(),
			cacheCmd(),
			watchCmd(),
		},
		DefaultCommand: "analyze",
	}
}

func startProfile(c *cli.Context) error {
	pprofPrefix := c.String("pprof")
	if pprofPrefix == "" {
		return nil
	}
	cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
	if err != nil {
		return fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		cpuFile.Close()
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}
	c.App.Metadata["pprofCPU"] = cpuFile
	return nil
}

func stopProfile(c *cli.Context) error {
	pprofPrefix := c.String("pprof")
	if pprofPrefix == "" {
		return nil
	}
	pprof.StopCPUProfile()
	if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
		cpuFile.Close()
		color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
	}

	memFile, err := os.Create(pprofPrefix + ".mem.pprof")
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer memFile.Close()

	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
	return nil
}
