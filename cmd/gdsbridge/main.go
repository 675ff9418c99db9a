package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/host"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/script"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Layout script (.hcl) to build")
		vars        = flag.String("var", "", "Script variables (name=value,name2=value2)")
		wasmFile    = flag.String("wasm", "", "Guest module importing the host functions")
		funcName    = flag.String("func", "", "Guest function to call (optional)")
		moduleName  = flag.String("module", "gdstk", "Host module name")
		maxDepth    = flag.Int("depth", -1, "Flatten depth limit (-1 for unlimited)")
		list        = flag.Bool("list", false, "List host functions and exit")
		interactive = flag.Bool("i", false, "Interactive inspector")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		bridge.SetLogger(logger.Named("bridge"))
		host.SetLogger(logger.Named("host"))
		script.SetLogger(logger.Named("script"))
	}

	if *list {
		listCatalog()
		return
	}

	if *scriptFile == "" && *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: gdsbridge -script <layout.hcl> [-var name=value,...]")
		fmt.Fprintln(os.Stderr, "       gdsbridge -wasm <guest.wasm> [-func name]")
		fmt.Fprintln(os.Stderr, "       gdsbridge -list")
		fmt.Fprintln(os.Stderr, "       gdsbridge [-script <layout.hcl>] -i  (interactive mode)")
		os.Exit(1)
	}

	opts := bridge.DefaultOptions()
	opts.MaxDepth = *maxDepth
	b := bridge.New(opts)

	var layout *script.Layout
	if *scriptFile != "" {
		sopts, err := scriptOptions(*vars)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		layout, err = script.Load(b, *scriptFile, sopts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer layout.Release()
	}

	hopts := host.Options{ModuleName: *moduleName}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(b, hopts, *scriptFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if layout != nil {
		printLayout(b, layout)
	}

	if *wasmFile != "" {
		if err := runGuest(b, hopts, *wasmFile, *funcName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func listCatalog() {
	fmt.Printf("Host functions:\n")
	for _, f := range host.Catalog() {
		fmt.Printf("  %s\n", f.Signature())
		if f.Doc != "" {
			fmt.Printf("      %s\n", f.Doc)
		}
	}
}

// scriptOptions parses name=value pairs. Values that parse as numbers or
// booleans are passed typed; everything else is a string.
func scriptOptions(s string) (script.Options, error) {
	opts := script.DefaultOptions()
	if s == "" {
		return opts, nil
	}
	opts.Variables = make(map[string]cty.Value)
	for _, kv := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return opts, fmt.Errorf("variable %q is not name=value", kv)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			opts.Variables[name] = cty.NumberFloatVal(f)
		} else if v, err := strconv.ParseBool(value); err == nil {
			opts.Variables[name] = cty.BoolVal(v)
		} else {
			opts.Variables[name] = cty.StringVal(value)
		}
	}
	return opts, nil
}

func printLayout(b *bridge.Bridge, layout *script.Layout) {
	for _, lib := range layout.Libraries {
		l, err := b.Library(lib.Ref)
		if err != nil {
			fmt.Printf("Library %s: %v\n", lib.Name, err)
			continue
		}
		fmt.Printf("Library: %s (unit %g, precision %g)\n", l.Name, l.Unit, l.Precision)
		fmt.Printf("Cells: %d\n", len(lib.Cells))
		for _, c := range lib.Cells {
			cell, err := b.Cell(c.Ref)
			if err != nil {
				fmt.Printf("  %s: %v\n", c.Name, err)
				continue
			}
			fmt.Printf("  %-16s polygons %d, paths %d, labels %d, references %d\n", cell.Name,
				cell.Polygons.Len(), cell.FlexPaths.Len()+cell.RobustPaths.Len(),
				cell.Labels.Len(), cell.References.Len())
		}

		cells, raws, err := b.LibraryTopLevel(lib.Ref)
		if err == nil {
			var names []string
			for _, h := range append(cells, raws...) {
				if obj, err := b.Object(h); err == nil {
					names = append(names, objectName(obj))
				}
				h.Release()
			}
			fmt.Printf("Top level: %s\n", strings.Join(names, ", "))
		}
		if tags, err := b.LibraryLayersAndDatatypes(lib.Ref); err == nil {
			fmt.Printf("Shape tags: %s\n", formatTags(tags))
		}
		if tags, err := b.LibraryLayersAndTexttypes(lib.Ref); err == nil {
			fmt.Printf("Label tags: %s\n", formatTags(tags))
		}
	}
	s := b.Stats()
	fmt.Printf("\nBlocks %d, owners %d, links %d, members %d, callbacks %d\n",
		s.Blocks, s.Owned, s.Links, s.Members, s.Callbacks)
}

func objectName(obj native.Object) string {
	switch o := obj.(type) {
	case *native.Cell:
		return o.Name
	case *native.RawCell:
		return o.Name
	}
	return obj.Kind().String()
}

func formatTags(tags []native.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

func runGuest(b *bridge.Bridge, opts host.Options, wasmFile, funcName string) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	m := host.New(b, opts)
	defer m.Close()
	if _, err := m.Instantiate(ctx, rt); err != nil {
		return err
	}

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	fmt.Printf("Guest: %s\n", wasmFile)
	fmt.Printf("Imports: %d\n", len(compiled.ImportedFunctions()))

	var exported []string
	for name := range compiled.ExportedFunctions() {
		exported = append(exported, name)
	}

	fmt.Printf("\nInstantiating guest...\n")
	guest, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer guest.Close(ctx)

	// If no function specified, try common entry points
	if funcName == "" {
		for _, name := range []string{"_start", "run", "main"} {
			if guest.ExportedFunction(name) != nil {
				funcName = name
				break
			}
		}
		if funcName == "" && len(exported) == 1 {
			funcName = exported[0]
		}
		if funcName == "" {
			fmt.Printf("\nNo function specified and no common entry point found.\n")
			fmt.Printf("Use -func to specify a function to call.\n")
			return nil
		}
	}

	fn := guest.ExportedFunction(funcName)
	if fn == nil {
		return fmt.Errorf("guest does not export %s", funcName)
	}
	fmt.Printf("\nCalling %s()...\n", funcName)
	result, err := fn.Call(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}
	fmt.Printf("Result: %v\n", result)
	fmt.Printf("Guest handles: %d\n", m.Handles())
	if msg := m.LastError(); msg != "" {
		fmt.Printf("Last host error: %s\n", msg)
	}
	s := b.Stats()
	fmt.Printf("Blocks %d, owners %d, links %d, members %d\n", s.Blocks, s.Owned, s.Links, s.Members)
	return nil
}
