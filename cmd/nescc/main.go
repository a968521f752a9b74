// Command nescc is the compiler's command-line entry point: it resolves
// configuration (internal/config), optionally runs under the debounced
// rebuild loop (internal/watch), and drives internal/driver's nine-phase
// pipeline to completion. Modeled on cmd_local/compile/main.go's shape
// (disable log timestamps, resolve one injected piece of arch-specific
// behavior, delegate everything else to a Main-shaped function) and
// cmd_local/asm/main.go's flag-then-linear-orchestration structure.
//
// The expression evaluator, IR builder/optimizer, and code generator —
// spec.md §1's explicitly out-of-scope collaborators, alongside the
// source parser that drives internal/driver.Compiler's Define* calls —
// have no concrete implementation in this module; a real build links
// one in by setting frontend in its own init, the way cmd_local/compile's
// archInits map is populated by each arch package's own Init function.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"nescc/internal/codegen"
	"nescc/internal/config"
	"nescc/internal/driver"
	"nescc/internal/evaluator"
	"nescc/internal/ir"
	"nescc/internal/watch"
)

// Frontend bundles the out-of-scope collaborators plus the source
// loader a concrete language implementation supplies: Parse is handed
// the compiler so it can call DefineFunction/DefineGvar/DefineConst/
// DefineStruct/DefineGroup for every global in paths before the
// pipeline's own phases run.
type Frontend struct {
	Evaluator   evaluator.Evaluator
	IRBuilder   ir.Builder
	IROptimizer ir.Optimizer
	Codegen     codegen.Generator
	Parse       func(c *driver.Compiler, paths []string) error
}

// frontend is nil in this module; a build that vendors a concrete
// front end registers it from an init() in the package it links in.
var frontend *Frontend

var (
	watchFlag = flag.Bool("watch", false, "rerun on source-file changes")
	threads   = flag.Int("threads", 0, "worker pool size (0: use config/env default)")
	graphviz  = flag.Bool("graphviz", false, "dump ssa graphs under graphs/")
	profile   = flag.Bool("profile", false, "dump per-phase pprof profiles under graphs/")
)

// resolveConfig builds a *config.Config from flags layered over
// internal/config's viper defaults, the way cmd_local/asm/internal/flags
// centralizes a tool's flags for main to read from.
func resolveConfig() (*config.Config, error) {
	v := config.New()
	if *watchFlag {
		v.Set("watch", true)
	}
	if *threads > 0 {
		v.Set("num_threads", *threads)
	}
	if *graphviz {
		v.Set("graphviz", true)
	}
	if *profile {
		v.Set("profile", true)
	}
	return config.Load(v)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("nescc: ")
	flag.Parse()

	if frontend == nil {
		log.Fatal("no front end registered: link a package that sets main.frontend via its own init")
	}

	cfg, err := resolveConfig()
	if err != nil {
		log.Fatal(err)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	rebuild := func() error {
		c := driver.Init(cfg, frontend.Evaluator, frontend.IRBuilder, frontend.IROptimizer, frontend.Codegen)
		if err := frontend.Parse(c, paths); err != nil {
			return err
		}
		return c.Main()
	}

	if cfg.Watch {
		if err := watch.Run(paths, nil, rebuild); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := rebuild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
