package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tern/internal/exec"
	"tern/internal/rt"
)

var (
	runEntry string
	runGas   uint64
	runArgs  []string
)

func init() {
	runCmd.Flags().StringVar(&runEntry, "entry", "main", "entry point symbol")
	runCmd.Flags().Uint64Var(&runGas, "gas", 1_000_000, "gas budget for the invocation")
	runCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "argument as kind:value (felt:7, u64:3, bool:true)")
}

var runCmd = &cobra.Command{
	Use:   "run <program>",
	Short: "Compile a program and invoke an entry point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := compileFile(cmd, args[0])
		printDiagnostics(cmd, result)
		if err != nil {
			return err
		}

		callArgs, err := parseArgs(runArgs)
		if err != nil {
			return err
		}

		engine := exec.NewEngine(result.Module, result.Resolved.Types)
		outcome, err := engine.Invoke(runEntry, callArgs, runGas)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outcome.Panicked() {
			fmt.Fprintf(out, "panic: %s", outcome.Panic.Code)
			for _, f := range outcome.Panic.Felts {
				fmt.Fprintf(out, " %s", f)
			}
			fmt.Fprintln(out)
		} else {
			for i, a := range outcome.Result {
				fmt.Fprintf(out, "result[%d] = %s\n", i, renderArg(&a))
			}
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(out, "gas used: %d, remaining: %d\n", outcome.GasUsed, outcome.GasLeft)
		}
		return nil
	},
}

func parseArgs(specs []string) ([]exec.Arg, error) {
	out := make([]exec.Arg, 0, len(specs))
	for _, spec := range specs {
		kind, val, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("argument %q is not kind:value", spec)
		}
		switch kind {
		case "felt":
			v, err := rt.ParseFelt(val)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", spec, err)
			}
			out = append(out, exec.FeltArg(v))
		case "u8", "u16", "u32", "u64":
			v, err := strconv.ParseUint(val, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", spec, err)
			}
			out = append(out, exec.UintArg(v))
		case "bool":
			v, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", spec, err)
			}
			out = append(out, exec.BoolArg(v))
		case "unit":
			out = append(out, exec.UnitArg())
		default:
			return nil, fmt.Errorf("argument %q has unsupported kind %q", spec, kind)
		}
	}
	return out, nil
}

func renderArg(a *exec.Arg) string {
	switch a.Kind {
	case exec.ArgUnit:
		return "()"
	case exec.ArgBool:
		return strconv.FormatBool(a.Bool)
	case exec.ArgUint:
		return strconv.FormatUint(a.U64, 10)
	case exec.ArgFelt:
		return a.FeltOf().String()
	case exec.ArgStruct:
		parts := make([]string, len(a.Fields))
		for i := range a.Fields {
			parts[i] = renderArg(&a.Fields[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case exec.ArgEnum:
		return fmt.Sprintf("#%d(%s)", a.Variant, renderArg(a.Payload))
	case exec.ArgArray:
		parts := make([]string, len(a.Elems))
		for i := range a.Elems {
			parts[i] = renderArg(&a.Elems[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case exec.ArgDict:
		parts := make([]string, len(a.Entries))
		for i := range a.Entries {
			k := a.Entries[i].Key
			parts[i] = fmt.Sprintf("%s: %s", feltString(k), renderArg(&a.Entries[i].Val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case exec.ArgBox:
		return "box(" + renderArg(a.Payload) + ")"
	default:
		return "?"
	}
}

func feltString(k [32]byte) string {
	a := exec.Arg{Kind: exec.ArgFelt, Felt: k}
	return a.FeltOf().String()
}
