// Package cxxfrontend implements ast.Provider over tree-sitter-cpp: it
// expands #includes textually (see includer.go), parses the result with
// the same tree-sitter grammar the teacher's internal/parser already
// depends on, and walks the tree into the Occasion/CallSite shape
// internal/rawindex consumes.
package cxxfrontend

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/debug"
)

// Provider parses C/C++ translation units with tree-sitter-cpp. It holds
// no per-call state, so one Provider is safe to share across concurrent
// scheduler workers: each Parse builds its own parser and tree.
type Provider struct {
	language *sitter.Language
}

// New returns a ready-to-use Provider.
func New() *Provider {
	return &Provider{language: sitter.NewLanguage(tree_sitter_cpp.Language())}
}

func (p *Provider) Parse(mainFile string, argv []string, interest ast.InterestFilter) (tu *ast.TranslationUnitAST, err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogFrontend("tree-sitter panic parsing %s: %v", mainFile, r)
			tu, err = nil, fmt.Errorf("cxxfrontend: panic parsing %s: %v", mainFile, r)
		}
	}()

	inc := newIncluder(argv)
	content, expandErr := inc.expand(mainFile)
	if expandErr != nil {
		return nil, fmt.Errorf("cxxfrontend: %w", expandErr)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("cxxfrontend: set language: %w", err)
	}

	// The walker below slices node text out of the same content buffer
	// the tree was parsed from, so content stays unmodified from here on.
	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("cxxfrontend: parse failed for %s", mainFile)
	}
	defer tree.Close()

	w := newWalker(inc, interest, content)
	w.walk(tree.RootNode())

	return &ast.TranslationUnitAST{
		MainFile:     mainFile,
		Occasions:    w.occasions,
		CallSites:    w.callSites,
		TouchedFiles: w.touchedFiles(),
		Includes:     inc.edges,
	}, nil
}
