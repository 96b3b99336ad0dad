// Graft CLI - inspect method chunks and the flow graphs built from them
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/graft/bytecode"
	"github.com/chazu/graft/chunk"
	"github.com/chazu/graft/engine"
	"github.com/chazu/graft/flow"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	analyze := flag.Bool("a", false, "Analyze each method and print its flow graph")
	configDir := flag.String("c", ".", "Directory to search upward for graft.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: graft [options] chunk-files...\n\n")
		fmt.Fprintf(os.Stderr, "Decodes method chunks, disassembles them, and optionally builds\n")
		fmt.Fprintf(os.Stderr, "their flow graphs with the configured identifier pool.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  graft method.chunk          # Disassemble\n")
		fmt.Fprintf(os.Stderr, "  graft -a method.chunk       # Disassemble and print flow graph\n")
		fmt.Fprintf(os.Stderr, "  graft -a -c ./patterns ...  # Use ./patterns/graft.toml identifiers\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	eng, err := engine.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg, err := engine.FindAndLoadConfig(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	} else if cfg != nil {
		if err := cfg.Apply(eng.Pool()); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying config: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, path := range flag.Args() {
		if err := dump(eng, path, *analyze); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func dump(eng *engine.Engine, path string, analyze bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := chunk.Unmarshal(data)
	if err != nil {
		return err
	}
	body, err := chunk.Decode(c)
	if err != nil {
		return err
	}

	fmt.Printf("method %s (max stack %d)\n", body.Name, body.MaxStack)
	fmt.Println(body.Disassemble())

	if !analyze {
		return nil
	}
	g, err := eng.Analyze(body)
	if err != nil {
		return err
	}
	fmt.Println("flow graph:")
	printGraph(g)
	return nil
}

func printGraph(g *flow.Graph) {
	index := make(map[*flow.FlowValue]int, len(g.Values()))
	for i, v := range g.Values() {
		index[v] = i
	}
	for i, v := range g.Values() {
		fmt.Printf("  n%d: %s", i, v.Insn())
		if v.Type() != bytecode.Void {
			fmt.Printf(" -> %s", v.Type())
		}
		if len(v.Inputs()) > 0 {
			fmt.Print(" <-")
			for _, in := range v.Inputs() {
				fmt.Printf(" n%d", index[in])
			}
		}
		if v.IsComplex() {
			fmt.Print(" (synthetic)")
		}
		fmt.Println()
	}
}
