// Package ninja writes build.ninja files.
package ninja

import (
	"strings"

	"github.com/qobs-build/shogun/internal/graph"
)

// Writer holds the low level statements of a build file: comments, variable
// bindings, rules and build edges.
type Writer struct {
	sb strings.Builder
}

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")

// quote escapes a path for use in a build statement.
func quote(s string) string { return ninjaPathEscaper.Replace(s) }

func (w *Writer) write(s ...string) {
	for _, str := range s {
		w.sb.WriteString(str)
	}
}

func (w *Writer) writeln(s ...string) {
	w.write(s...)
	w.sb.WriteByte('\n')
}

func (w *Writer) Newline() { w.writeln() }

func (w *Writer) Comment(text string) {
	for _, line := range strings.Split(text, "\n") {
		w.writeln("# ", line)
	}
}

func (w *Writer) Variable(name, value string) {
	w.writeln(name, " = ", value)
}

func (w *Writer) Rule(name, command, description string) {
	w.writeln("rule ", name)
	w.writeln("  command = ", command)
	if description != "" {
		w.writeln("  description = ", description)
	}
	w.writeln()
}

func (w *Writer) Build(outputs []string, rule string, inputs, implicit []string) {
	w.write("build")
	for _, out := range outputs {
		w.write(" ", quote(out))
	}
	w.write(": ", rule)
	for _, in := range inputs {
		w.write(" ", quote(in))
	}
	if len(implicit) > 0 {
		w.write(" |")
		for _, dep := range implicit {
			w.write(" ", quote(dep))
		}
	}
	w.writeln()
}

func (w *Writer) String() string { return w.sb.String() }

// Render serializes g: comments, variables, the templates of the rules in
// use, then every edge in emission order.
func Render(g *graph.Graph) string {
	var w Writer

	for _, c := range g.Comments {
		w.Comment(c)
	}
	for _, v := range g.Variables {
		w.Variable(v.Name, v.Value)
	}
	w.Newline()

	for _, kind := range g.UsedKinds() {
		t, ok := g.Templates[kind]
		if !ok {
			continue
		}
		w.Rule(kind.String(), t.Command, t.Description)
	}

	for _, e := range g.Edges {
		w.Build(e.Outputs, e.Rule.String(), e.Inputs, e.Implicit)
	}

	return w.String()
}
