package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/taintbox/backend/wasm"
	"github.com/wippyai/taintbox/sandbox"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to guest wasm module")
		funcName    = flag.String("func", "", "Function to call")
		argsStr     = flag.String("args", "", "Arguments (comma-separated)")
		memLimit    = flag.Uint("memlimit", 0, "Guest memory limit in 64KB pages (0 = unlimited)")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: sbxcall -wasm <file.wasm> -func name [-args a,b,c]")
		fmt.Fprintln(os.Stderr, "       sbxcall -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       sbxcall -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*wasmFile, uint32(*memLimit)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *funcName, *argsStr, uint32(*memLimit), *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, funcName, argsStr string, memLimit uint32, listOnly bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	be := wasm.New(wasm.Config{Module: data, MemoryLimitPages: memLimit})
	sbx := sandbox.New(be)
	if err := sbx.Create(ctx); err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	defer sbx.Destroy(ctx)

	exports := be.Exports()
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })

	fmt.Printf("Module: %s\n", wasmFile)
	fmt.Printf("Heap: %d bytes\n", be.HeapSize())
	fmt.Printf("\nExported functions:\n")
	for _, e := range exports {
		fmt.Printf("  %s\n", formatExport(e))
	}

	if listOnly {
		return nil
	}

	if funcName == "" {
		fmt.Printf("\nUse -func to specify a function to call.\n")
		return nil
	}

	var target *wasm.Export
	for i := range exports {
		if exports[i].Name == funcName {
			target = &exports[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("function %q not exported", funcName)
	}

	var rawArgs []string
	if argsStr != "" {
		rawArgs = strings.Split(argsStr, ",")
	}
	if len(rawArgs) != len(target.Params) {
		return fmt.Errorf("%s takes %d arguments, got %d", funcName, len(target.Params), len(rawArgs))
	}
	args, err := parseArgs(rawArgs, target.Params)
	if err != nil {
		return err
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, strings.Join(rawArgs, ", "))
	result, err := callExport(ctx, sbx, *target, args)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %s\n", result)
	return nil
}

func formatExport(e wasm.Export) string {
	s := e.Name + "(" + strings.Join(e.Params, ", ") + ")"
	if len(e.Results) > 0 {
		s += " -> " + strings.Join(e.Results, ", ")
	}
	return s
}

// parseArgs converts textual arguments to typed values matching the
// export's wasm signature.
func parseArgs(raw, types []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		v, err := parseArg(s, types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, types[i], err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(s, typ string) (any, error) {
	switch typ {
	case "i32":
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case "i64":
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "f32":
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return float32(v), nil
	case "f64":
		return strconv.ParseFloat(s, 64)
	default:
		return nil, fmt.Errorf("unsupported value type %q", typ)
	}
}

// callExport invokes the function and renders the result according to
// the export's result type. Values coming back are untrusted; a CLI
// that only prints them can take them unverified.
func callExport(ctx context.Context, sbx *sandbox.Sandbox, e wasm.Export, args []any) (string, error) {
	if len(e.Results) == 0 {
		if err := sandbox.InvokeVoid(ctx, sbx, e.Name, args...); err != nil {
			return "", err
		}
		return "(no result)", nil
	}
	switch e.Results[0] {
	case "i32":
		r, err := sandbox.Invoke[int32](ctx, sbx, e.Name, args...)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(r.Unverified()), 10), nil
	case "i64":
		r, err := sandbox.Invoke[int64](ctx, sbx, e.Name, args...)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(r.Unverified(), 10), nil
	case "f32":
		r, err := sandbox.Invoke[float32](ctx, sbx, e.Name, args...)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(float64(r.Unverified()), 'g', -1, 32), nil
	case "f64":
		r, err := sandbox.Invoke[float64](ctx, sbx, e.Name, args...)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(r.Unverified(), 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported result type %q", e.Results[0])
	}
}
