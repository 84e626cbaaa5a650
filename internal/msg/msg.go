package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Reporter prints labelled diagnostics to a single writer. Diagnostics never
// go into the generated build file.
type Reporter struct {
	W io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{W: w}
}

var std = NewReporter(os.Stderr)

// Default returns the reporter used by the package-level functions.
func Default() *Reporter { return std }

// SetOutput redirects the package-level functions, mostly for tests.
func SetOutput(w io.Writer) { std.W = w }

func (r *Reporter) print(label string, format string, a ...any) {
	fmt.Fprint(r.W, label)
	fmt.Fprint(r.W, ": ")
	fmt.Fprintf(r.W, format, a...)
	fmt.Fprint(r.W, "\n")
}

func (r *Reporter) Error(format string, a ...any) {
	r.print(color.HiRedString("error"), format, a...)
}

func (r *Reporter) Warn(format string, a ...any) {
	r.print(color.YellowString("warn"), format, a...)
}

func (r *Reporter) Info(format string, a ...any) {
	r.print(color.HiGreenString("info"), format, a...)
}

// List prints a title followed by one indented item per line. Nothing is
// printed for an empty list.
func (r *Reporter) List(title string, items []string) {
	if len(items) == 0 {
		return
	}
	r.Warn("%s (%d):", title, len(items))
	w := &IndentWriter{Indent: "    ", W: r.W}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
}

func Error(format string, a ...any) { std.Error(format, a...) }
func Warn(format string, a ...any)  { std.Warn(format, a...) }
func Info(format string, a ...any)  { std.Info(format, a...) }

func Fatal(format string, a ...any) {
	std.print(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

// IndentWriter prefixes every line written through it with Indent.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err = w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
