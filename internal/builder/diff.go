package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/qobs-build/shogun/internal/msg"
)

// Diff returns a line diff turning oldText into newText, with "-" and "+"
// prefixed lines. It is empty when both are equal.
func Diff(oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// diffOutput compares the build file at path with freshly generated content
// and reports the difference. A missing file counts as empty.
func diffOutput(path, content string, rep *msg.Reporter) error {
	if path == "-" {
		return errors.New("cannot diff against stdout, pass an output file")
	}

	old, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	d := Diff(string(old), content)
	if d == "" {
		rep.Info("%s is up to date", path)
		return nil
	}
	rep.Warn("%s differs from the generated build file:", path)
	fmt.Fprint(&msg.IndentWriter{Indent: "    ", W: rep.W}, d)
	return nil
}
