package builder

import (
	"fmt"
	"strings"

	"github.com/qobs-build/shogun/internal/classify"
	"github.com/qobs-build/shogun/internal/graph"
)

var (
	defaultCxxflags      = []string{"-std=c++14", "-fPIC"}
	defaultCxxflagsTerse = []string{"-w"}
	defaultIncludes      = []string{".", "./debian/embedded/eigen/", "./third_party/eigen3/", "/usr/include/gemmlowp"}
	defaultLibs          = []string{"pthread", "protobuf"}
)

const (
	defaultProtoTextPrefix      = "tensorflow/core"
	defaultProtoTextPlaceholder = "tensorflow/tools/proto_text/placeholder.txt"
	defaultVersionScript        = "tensorflow/tools/git/gen_git_source.sh"
)

// Toolchain is the fully resolved set of commands and flags a build file is
// generated with. It is computed once per invocation and never modified.
type Toolchain struct {
	BuildDir string

	Cxx, Protoc, Ar, Bash string

	CxxFlags   []string
	TerseFlags []string
	Includes   []string
	Libs       []string

	ProtoTextTool        string
	ProtoTextPrefix      string
	ProtoTextPlaceholder string
	VersionScript        string

	// Excludes are dropped from source lists right before compilation.
	Excludes []string
}

func or[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func orSlice(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}

// Resolve combines the config with a profile and a build directory.
func (c *Config) Resolve(profile, buildDir string) (Toolchain, error) {
	prof, ok := c.Profile[profile]
	if !ok {
		return Toolchain{}, fmt.Errorf("unknown profile %q, known profiles: %s", profile, strings.Join(c.Profiles(), ", "))
	}

	buildDir = strings.TrimSuffix(or(buildDir, "."), "/")
	if buildDir == "" {
		buildDir = "/"
	}
	t := c.Toolchain

	cxxflags := append([]string(nil), orSlice(t.Cxxflags, defaultCxxflags)...)
	if opt := prof.optFlag(); opt != "" {
		cxxflags = append(cxxflags, opt)
	}

	return Toolchain{
		BuildDir:             buildDir,
		Cxx:                  or(t.Cxx, findCompiler()),
		Protoc:               or(t.Protoc, "protoc"),
		Ar:                   or(t.Ar, "ar"),
		Bash:                 or(t.Bash, "bash"),
		CxxFlags:             cxxflags,
		TerseFlags:           orSlice(t.CxxflagsTerse, defaultCxxflagsTerse),
		Includes:             orSlice(t.Includes, defaultIncludes),
		Libs:                 orSlice(t.Libs, defaultLibs),
		ProtoTextTool:        or(t.ProtoTextTool, joinDir(buildDir, "proto_text")),
		ProtoTextPrefix:      or(t.ProtoTextPrefix, defaultProtoTextPrefix),
		ProtoTextPlaceholder: or(t.ProtoTextPlaceholder, defaultProtoTextPlaceholder),
		VersionScript:        or(t.VersionScript, defaultVersionScript),
		Excludes:             c.Exclude.Sources,
	}, nil
}

func joinDir(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

func prefixed(prefix string, items []string) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + item
	}
	return strings.Join(out, " ")
}

// excludeRules turns the configured exclusions into classifier rules.
func (tc Toolchain) excludeRules() []classify.Rule {
	rules := make([]classify.Rule, len(tc.Excludes))
	for i, pat := range tc.Excludes {
		rules[i] = classify.Rule{Tag: TagExcluded, Match: classify.Glob(pat)}
	}
	return rules
}

// declare adds the shared variable bindings and every rule template to g.
func (tc Toolchain) declare(g *graph.Graph) {
	g.Variable("CXXFLAGS", strings.Join(tc.CxxFlags, " "))
	g.Variable("CXXFLAGS_terse", strings.Join(tc.TerseFlags, " "))
	g.Variable("INCLUDES", prefixed("-I", tc.Includes))
	g.Variable("LIBS", prefixed("-l", tc.Libs))
	g.Variable("PROTO_TEXT_ELF", tc.ProtoTextTool)

	b := tc.BuildDir
	cxx := tc.Cxx + " $CXXFLAGS $CXXFLAGS_terse $INCLUDES"
	for _, t := range []graph.Template{
		{Kind: graph.CompileProto, Command: tc.Protoc + " $in --cpp_out " + b, Description: "PROTOC $in"},
		{Kind: graph.CompileProtoText, Command: "$PROTO_TEXT_ELF " + joinDir(b, tc.ProtoTextPrefix) + " " + tc.ProtoTextPrefix + " " + tc.ProtoTextPlaceholder + " $in", Description: "PROTO_TEXT $in"},
		{Kind: graph.CompileObject, Command: cxx + " -c $in -o $out", Description: "CXX $out"},
		{Kind: graph.GenerateVersionInfo, Command: tc.Bash + " " + joinDir(b, tc.VersionScript) + " $out", Description: "GEN $out"},
		{Kind: graph.LinkExecutable, Command: cxx + " $in -o $out $LIBS", Description: "LINK $out"},
		{Kind: graph.LinkStaticArchive, Command: tc.Ar + " rcs $out $in", Description: "AR $out"},
		{Kind: graph.LinkSharedLibrary, Command: tc.Cxx + " -shared -fPIC $CXXFLAGS $CXXFLAGS_terse $INCLUDES $in -o $out $LIBS", Description: "SHLIB $out"},
	} {
		g.Rule(t)
	}
}
