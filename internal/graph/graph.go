// Package graph models a ninja build graph: rule templates, variable
// bindings and the ordered build edges between them.
package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	errNotTerminal    = errors.New("rule does not produce a final artifact")
	errSecondTerminal = errors.New("graph already has a terminal edge")
)

// Variable is a top-level binding of the build file.
type Variable struct {
	Name  string
	Value string
}

// Edge is one build statement. Implicit inputs are dependencies that do not
// appear in $in.
type Edge struct {
	Rule     RuleKind
	Inputs   []string
	Implicit []string
	Outputs  []string
}

type Graph struct {
	Comments  []string
	Variables []Variable
	Templates map[RuleKind]Template
	Edges     []Edge

	terminal int
}

func New() *Graph {
	return &Graph{
		Templates: make(map[RuleKind]Template),
		terminal:  -1,
	}
}

func (g *Graph) Comment(text string) {
	g.Comments = append(g.Comments, text)
}

func (g *Graph) Variable(name, value string) {
	g.Variables = append(g.Variables, Variable{Name: name, Value: value})
}

func (g *Graph) Rule(t Template) {
	g.Templates[t.Kind] = t
}

func (g *Graph) add(e Edge) {
	g.Edges = append(g.Edges, e)
}

func (g *Graph) setTerminal(e Edge) error {
	if !e.Rule.Terminal() {
		return fmt.Errorf("%s: %w", e.Rule, errNotTerminal)
	}
	if g.terminal >= 0 {
		return fmt.Errorf("%s %v: %w", e.Rule, e.Outputs, errSecondTerminal)
	}
	g.terminal = len(g.Edges)
	g.add(e)
	return nil
}

// Terminal returns the edge producing the final artifact, or nil if it was
// not emitted yet.
func (g *Graph) Terminal() *Edge {
	if g.terminal < 0 {
		return nil
	}
	return &g.Edges[g.terminal]
}

// EdgesOf returns the edges using rule k, in emission order.
func (g *Graph) EdgesOf(k RuleKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Rule == k {
			out = append(out, e)
		}
	}
	return out
}

// UsedKinds returns the kinds with at least one edge, in Kinds order.
func (g *Graph) UsedKinds() []RuleKind {
	var used []RuleKind
	for _, k := range Kinds {
		if slices.ContainsFunc(g.Edges, func(e Edge) bool { return e.Rule == k }) {
			used = append(used, k)
		}
	}
	return used
}
