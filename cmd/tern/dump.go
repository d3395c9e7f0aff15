package main

import (
	"github.com/spf13/cobra"

	"tern/internal/native"
)

var dumpFunc string

func init() {
	dumpCmd.Flags().StringVar(&dumpFunc, "func", "", "dump only the named function")
}

var dumpCmd = &cobra.Command{
	Use:   "dump <program>",
	Short: "Print the lowered block graph without executing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := compileFile(cmd, args[0])
		printDiagnostics(cmd, result)
		if err != nil {
			return err
		}
		return native.Dump(cmd.OutOrStdout(), result.Module, result.Resolved.Types, native.DumpOptions{
			Func: dumpFunc,
		})
	},
}
