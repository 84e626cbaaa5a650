package builder

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/qobs-build/shogun/internal/graph"
	"github.com/qobs-build/shogun/internal/label"
	"github.com/qobs-build/shogun/internal/msg"
	"github.com/qobs-build/shogun/internal/ninja"
)

var (
	// ErrResidualCount is returned when the generated list does not leave
	// exactly one file for GEN_VERSION_INFO.
	ErrResidualCount = errors.New("expected exactly one unprocessed generated file")

	errMissingSources   = errors.New("a source list is required")
	errMissingGenerated = errors.New("a generated file list is required")
)

// stdout receives build files written to "-".
var stdout io.Writer = os.Stdout

type Builder struct {
	tc       Toolchain
	revision string
}

// Options are the per-invocation inputs of Build.
type Options struct {
	Sources   string // path to the source list dump
	Generated string // path to the generated file list dump
	Output    string // build file to write; empty means the variant's default, "-" means stdout
	Diff      bool   // report differences to the existing output instead of writing it
}

// Inputs are the raw labels of both dumps.
type Inputs struct {
	Sources   []string
	Generated []string
}

// NewBuilder loads the config at configPath (if any) and resolves the
// toolchain for profile and buildDir. srcDir is the source tree the dumps are
// relative to; its git revision is recorded in generated files.
func NewBuilder(configPath, profile, buildDir, srcDir string) (*Builder, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = ParseConfigFromFile(configPath, NewConfigEnv())
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	tc, err := cfg.Resolve(profile, buildDir)
	if err != nil {
		return nil, err
	}

	rev, err := sourceRevision(srcDir)
	if err != nil {
		msg.Warn("could not read source revision of %s: %v", srcDir, err)
	}

	return &Builder{tc: tc, revision: rev}, nil
}

func (b *Builder) Toolchain() Toolchain { return b.tc }

// readList reads a dependency dump, one label per line. Surrounding
// whitespace is trimmed and blank lines are skipped.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return labels, nil
}

func loadInputs(v Variant, opts Options) (in Inputs, err error) {
	if v.NeedsSources() {
		if opts.Sources == "" {
			return in, errMissingSources
		}
		if in.Sources, err = readList(opts.Sources); err != nil {
			return in, fmt.Errorf("source list: %w", err)
		}
	}
	if v.NeedsGenerated() {
		if opts.Generated == "" {
			return in, errMissingGenerated
		}
		if in.Generated, err = readList(opts.Generated); err != nil {
			return in, fmt.Errorf("generated file list: %w", err)
		}
	}
	return in, nil
}

// protoOrigins maps generated protobuf files back to their .proto files.
func protoOrigins(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if src, ok := graph.ProtoSource(p); ok {
			out[i] = src
		} else {
			out[i] = p
		}
	}
	return out
}

// repoNames renders external repository names for diagnostics. A label
// like "@//x" has no name and is shown as "@".
func repoNames(repos []string) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = cmp.Or(r, "@")
	}
	return out
}

// Plan builds the graph of variant v in memory. Diagnostics go to rep; the
// only error is a violated residual count or an internal inconsistency.
func (b *Builder) Plan(v Variant, in Inputs, rep *msg.Reporter) (*graph.Graph, error) {
	srcs, srcExternal := label.Normalize(in.Sources)
	gens, genExternal := label.Normalize(in.Generated)

	external := append(srcExternal, genExternal...)
	slices.Sort(external)
	external = slices.Compact(external)
	if len(external) > 0 {
		rep.Info("%s requires external deps: %s", v.Name, strings.Join(repoNames(external), ", "))
	}

	g := graph.New()
	g.Comment("automatically generated by shogun " + v.Name)
	if b.revision != "" {
		g.Comment("source revision " + b.revision)
	}
	b.tc.declare(g)
	e := graph.NewEmitter(g)

	var units []string

	if v.NeedsGenerated() {
		res := v.Generated.Classify(gens)
		e.Proto(protoOrigins(res.Bucket(TagProto)))
		e.ProtoText(protoOrigins(res.Bucket(TagProtoText)), b.tc.ProtoTextTool)
		units = append(units, res.Bucket(TagCompile)...)

		rep.List("unprocessed generated files", res.Leftover)
		if v.VersionInfo {
			// the last generated file not produced by protoc or proto_text
			// is the version info source
			if len(res.Leftover) != 1 {
				return nil, fmt.Errorf("%w, got %d", ErrResidualCount, len(res.Leftover))
			}
			srcs = append(srcs, e.VersionInfo(res.Leftover[0]))
		}
	}

	if v.NeedsSources() {
		table := v.Sources
		if excl := b.tc.excludeRules(); len(excl) > 0 {
			table = table.Before(TagCompile, excl...)
		}
		res := table.Classify(srcs)
		if v.ProtosFromSources {
			e.Proto(res.Bucket(TagProto))
		}
		units = append(units, res.Bucket(TagCompile)...)
		rep.List("unprocessed source files", res.Leftover)
	}

	e.Objects(units)
	rep.List("skipped duplicate edges", e.Skipped)

	if _, err := e.Terminal(v.Terminal, v.Artifact); err != nil {
		return nil, err
	}
	return g, nil
}

// Build reads the dumps named in opts, plans variant v and writes (or
// diffs) its build file.
func (b *Builder) Build(v Variant, opts Options, rep *msg.Reporter) error {
	in, err := loadInputs(v, opts)
	if err != nil {
		return err
	}

	g, err := b.Plan(v, in, rep)
	if err != nil {
		return err
	}
	out := ninja.Render(g)

	output := opts.Output
	if output == "" {
		output = v.DefaultOutput
	}

	if opts.Diff {
		return diffOutput(output, out, rep)
	}
	if err := writeOutput(output, out); err != nil {
		return err
	}
	if output != "-" {
		rep.Info("wrote %s (%d edges, %d objects)", output, len(g.Edges), len(g.Terminal().Inputs))
	}
	return nil
}

func writeOutput(path, content string) error {
	if path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	if _, err := bufw.WriteString(content); err != nil {
		return err
	}
	return bufw.Flush()
}
