// Package graphviz dumps a function's CFG (and, once IR is built, its
// SSA graph) as a GraphViz ".gv" file, for the optional diagnostic
// output spec.md §6's file surface names:
// "graphs/cfg__<name>__<suffix>.gv" and "graphs/ssa__<name>__<suffix>.gv"
// when Config.Graphviz is set. Grounded on
// github.com/awalterschulze/gographviz, seen in the pack's
// DataDog-datadog-agent manifest.
package graphviz

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/awalterschulze/gographviz"
)

// Block is one node in the dumped graph: a label and the nodes it
// branches to. The caller (internal/driver) builds these from a
// function's CFG or IR without this package needing to know either
// shape directly.
type Block struct {
	Name string
	Succ []string
}

// WriteGraph renders blocks as a directed graph and writes it to path,
// creating path's directory if needed.
func WriteGraph(path string, graphName string, blocks []Block) error {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return fmt.Errorf("graphviz: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return fmt.Errorf("graphviz: %w", err)
	}
	for _, b := range blocks {
		if err := g.AddNode(graphName, quote(b.Name), nil); err != nil {
			return fmt.Errorf("graphviz: %w", err)
		}
	}
	for _, b := range blocks {
		for _, s := range b.Succ {
			if err := g.AddEdge(quote(b.Name), quote(s), true, nil); err != nil {
				return fmt.Errorf("graphviz: %w", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("graphviz: %w", err)
	}
	return os.WriteFile(path, []byte(g.String()), 0o644)
}

// CFGPath and SSAPath compose spec.md §6's fixed output paths.
func CFGPath(dir, name, suffix string) string {
	return filepath.Join(dir, fmt.Sprintf("cfg__%s__%s.gv", name, suffix))
}

func SSAPath(dir, name, suffix string) string {
	return filepath.Join(dir, fmt.Sprintf("ssa__%s__%s.gv", name, suffix))
}

func quote(s string) string {
	return `"` + s + `"`
}
