package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tern/internal/gas"
	"tern/internal/layout"
	"tern/internal/pipeline"
	"tern/internal/ui"
)

const timeRounding = time.Millisecond

var (
	compileGasTable string
	compileWorkers  int
	compileUI       bool
)

func init() {
	compileCmd.Flags().StringVar(&compileGasTable, "gas-table", "", "TOML cost table overriding the builtin model")
	compileCmd.Flags().IntVar(&compileWorkers, "workers", 0, "concurrent function lowerings (0 = all CPUs)")
	compileCmd.Flags().BoolVar(&compileUI, "ui", false, "render interactive progress")
}

var compileCmd = &cobra.Command{
	Use:   "compile <program>",
	Short: "Lower a serialized program to a native module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := compileFile(cmd, args[0])
		printDiagnostics(cmd, result)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d functions in %s\n",
				len(result.Module.Funcs), result.Elapsed.Round(timeRounding))
		}
		return nil
	},
}

func compileFile(cmd *cobra.Command, path string) (*pipeline.Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var model *gas.CostModel
	if compileGasTable != "" {
		model, err = gas.LoadModel(compileGasTable)
		if err != nil {
			return nil, err
		}
	}

	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	req := pipeline.Request{
		Source:         source,
		Target:         layout.X86_64LinuxGNU(),
		Model:          model,
		Workers:        compileWorkers,
		MaxDiagnostics: maxDiags,
	}

	if compileUI && isTerminal(os.Stdout) {
		return compileWithUI(path, req)
	}
	return pipeline.Compile(req)
}

func compileWithUI(path string, req pipeline.Request) (*pipeline.Result, error) {
	events := make(chan pipeline.Event, 64)
	req.Progress = pipeline.ChannelSink{Ch: events}

	var result *pipeline.Result
	var compileErr error
	go func() {
		defer close(events)
		result, compileErr = pipeline.Compile(req)
	}()

	model := ui.NewProgressModel(path, pipeline.FuncNames(req.Source), events)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		// Drain so the compile goroutine can finish.
		for range events {
		}
	}
	return result, compileErr
}

func printDiagnostics(cmd *cobra.Command, result *pipeline.Result) {
	if result == nil || result.Bag == nil {
		return
	}
	result.Bag.Sort()
	for _, d := range result.Bag.Items() {
		fmt.Fprintln(cmd.ErrOrStderr(), d.Error())
	}
}
