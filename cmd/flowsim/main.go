// Package main provides the flowsim CLI application.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowsim/flowsim/pkg/flowsim"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("flowsim %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	case "plan":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		if err := showPlan(os.Args[2]); err != nil {
			fatal(err)
		}
	case "run":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		if err := runConfig(os.Args[2]); err != nil {
			fatal(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("flowsim - flowsheet scheduling and fixed-point simulation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  flowsim version           print version information")
	fmt.Println("  flowsim plan <config>     analyze a flowsheet and print its stage plan")
	fmt.Println("  flowsim run <config>      run the simulation described by a config file")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "flowsim: %v\n", err)
	os.Exit(1)
}

func showPlan(path string) error {
	rt, err := flowsim.LoadFile(path)
	if err != nil {
		return err
	}
	printPlan(rt.Plan())
	return nil
}

func runConfig(path string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	rt, err := flowsim.LoadFile(path, flowsim.WithLogger(logger))
	if err != nil {
		return err
	}
	printPlan(rt.Plan())

	results, err := rt.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("\ncompleted %d steps\n", results.StepCount())
	for _, edgeID := range results.EdgeIDs {
		if last := results.Last(edgeID); last != nil {
			fmt.Printf("  %s: %v\n", edgeID, last)
		}
	}
	return nil
}

func printPlan(p *flowsim.Plan) {
	fmt.Printf("flowsheet %s: %d stages (%d loops)\n", p.FlowsheetID, len(p.Stages), p.LoopCount())
	for i, stage := range p.Stages {
		switch stage.Kind {
		case flowsim.StageLinear:
			fmt.Printf("  stage %d: linear %v\n", i, stage.Order)
		case flowsim.StageLoop:
			fmt.Printf("  stage %d: loop   %v (tears: %v)\n", i, stage.Order, stage.TearEdges)
		}
	}
}
