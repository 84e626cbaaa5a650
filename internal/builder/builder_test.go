package builder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/shogun/internal/graph"
	"github.com/qobs-build/shogun/internal/msg"
	"github.com/qobs-build/shogun/internal/ninja"
)

func init() {
	color.NoColor = true
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	t.Setenv("CXX", "")
	tc, err := DefaultConfig().Resolve("release", "build")
	require.NoError(t, err)
	return &Builder{tc: tc}
}

func mustVariant(t *testing.T, name string) Variant {
	t.Helper()
	v, ok := VariantByName(name)
	require.True(t, ok, name)
	return v
}

func objectOutputs(g *graph.Graph) []string {
	var objs []string
	for _, e := range g.EdgesOf(graph.CompileObject) {
		objs = append(objs, e.Outputs...)
	}
	return objs
}

func TestPlanToolBuild(t *testing.T) {
	b := testBuilder(t)
	var log bytes.Buffer

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{"//a/b.proto", "//a/b.cc", "//a/b.h", "@ext//x:y"},
	}, msg.NewReporter(&log))
	require.NoError(t, err)

	assert.Contains(t, log.String(), "requires external deps: ext")

	protos := g.EdgesOf(graph.CompileProto)
	require.Len(t, protos, 1)
	assert.Equal(t, []string{"a/b.proto"}, protos[0].Inputs)
	assert.Equal(t, []string{"a/b.pb.cc", "a/b.pb.h"}, protos[0].Outputs)

	objs := g.EdgesOf(graph.CompileObject)
	require.Len(t, objs, 1)
	assert.Equal(t, []string{"a/b.cc"}, objs[0].Inputs)

	term := g.Terminal()
	require.NotNil(t, term)
	assert.Equal(t, graph.LinkExecutable, term.Rule)
	assert.Equal(t, []string{"proto_text"}, term.Outputs)
	assert.Equal(t, []string{"a/b.o"}, term.Inputs)

	for _, e := range g.Edges {
		assert.NotContains(t, e.Inputs, "a/b.h")
	}
}

func TestRenderToolBuild(t *testing.T) {
	b := testBuilder(t)

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{"//a/b.proto", "//a/b.cc", "//a/b.h", "@ext//x:y"},
	}, msg.NewReporter(&bytes.Buffer{}))
	require.NoError(t, err)

	want := `# automatically generated by shogun ProtoText
CXXFLAGS = -std=c++14 -fPIC -O2
CXXFLAGS_terse = -w
INCLUDES = -I. -I./debian/embedded/eigen/ -I./third_party/eigen3/ -I/usr/include/gemmlowp
LIBS = -lpthread -lprotobuf
PROTO_TEXT_ELF = build/proto_text

rule PROTOC
  command = protoc $in --cpp_out build
  description = PROTOC $in

rule CXX_OBJ
  command = g++ $CXXFLAGS $CXXFLAGS_terse $INCLUDES -c $in -o $out
  description = CXX $out

rule CXX_EXEC
  command = g++ $CXXFLAGS $CXXFLAGS_terse $INCLUDES $in -o $out $LIBS
  description = LINK $out

build a/b.pb.cc a/b.pb.h: PROTOC a/b.proto
build a/b.o: CXX_OBJ a/b.cc
build proto_text: CXX_EXEC a/b.o
`
	assert.Equal(t, want, ninja.Render(g))
}

func TestPlanToolBuildExclusions(t *testing.T) {
	b := testBuilder(t)
	var log bytes.Buffer

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{
			"//third_party/eigen3:foo.cc",
			"//tensorflow/core:platform/windows/env_time.cc",
			"//tensorflow/core:platform/env_time.cc",
			"//tensorflow/core:lib/core/coding.inc",
		},
	}, msg.NewReporter(&log))
	require.NoError(t, err)

	assert.Equal(t, []string{"tensorflow/core/platform/env_time.o"}, g.Terminal().Inputs)
	assert.Contains(t, log.String(), "unprocessed source files (1)")
	assert.Contains(t, log.String(), "tensorflow/core/lib/core/coding.inc")
}

var frameworkGens = []string{
	"//tensorflow/core:framework/graph.pb.cc",
	"//tensorflow/core:framework/graph.pb.h",
	"//tensorflow/core:framework/graph.pb_text.cc",
	"//tensorflow/core:framework/graph.pb_text.h",
	"//tensorflow/core:framework/graph.pb_text-impl.h",
	"@protobuf_archive//:protobuf_headers",
	"//tensorflow/core:util/version_info.cc",
}

var frameworkSrcs = []string{
	"//tensorflow/core:framework/graph.proto",
	"//tensorflow/core:framework/op.cc",
	"//tensorflow/core:framework/op.h",
	"//third_party/eigen3:tensor.cc",
	"//tensorflow/core:platform/windows/env_time.cc",
	"//tensorflow/core:platform/windows/port.cc",
	"//tensorflow/stream_executor:dnn.cc",
	"//tensorflow/core:lib/core/coding.inc",
	"@com_google_absl//absl/strings:strings",
}

func TestPlanFramework(t *testing.T) {
	for _, name := range []string{"TFFrame", "TFLibAndroid"} {
		t.Run(name, func(t *testing.T) {
			b := testBuilder(t)
			v := mustVariant(t, name)
			var log bytes.Buffer

			g, err := b.Plan(v, Inputs{Sources: frameworkSrcs, Generated: frameworkGens}, msg.NewReporter(&log))
			require.NoError(t, err)

			assert.Contains(t, log.String(), "requires external deps: com_google_absl, protobuf_archive")
			assert.Contains(t, log.String(), "unprocessed generated files (1)")
			assert.Contains(t, log.String(), "tensorflow/core/lib/core/coding.inc")

			protos := g.EdgesOf(graph.CompileProto)
			require.Len(t, protos, 1)
			assert.Equal(t, []string{"tensorflow/core/framework/graph.proto"}, protos[0].Inputs)

			protoText := g.EdgesOf(graph.CompileProtoText)
			require.Len(t, protoText, 1)
			assert.Equal(t, []string{"tensorflow/core/framework/graph.proto"}, protoText[0].Inputs)
			assert.Equal(t, []string{"build/proto_text"}, protoText[0].Implicit)

			version := g.EdgesOf(graph.GenerateVersionInfo)
			require.Len(t, version, 1)
			assert.Empty(t, version[0].Inputs)
			assert.Equal(t, []string{"tensorflow/core/util/version_info.cc"}, version[0].Outputs)

			term := g.Terminal()
			require.NotNil(t, term)
			assert.Equal(t, graph.LinkSharedLibrary, term.Rule)
			assert.Equal(t, []string{v.Artifact}, term.Outputs)
			assert.Equal(t, []string{
				"tensorflow/core/framework/op.o",
				"tensorflow/core/util/version_info.o",
			}, term.Inputs)
		})
	}
}

func TestPlanFrameworkResidualCount(t *testing.T) {
	tests := map[string][]string{
		"none": {
			"//a:b.pb.cc",
			"//a:b.pb.h",
		},
		"two": {
			"//a:b.pb.cc",
			"//a:version_info.cc",
			"//a:build_info.cc",
		},
	}
	for _, name := range []string{"TFFrame", "TFLibAndroid"} {
		for desc, gens := range tests {
			t.Run(name+"/"+desc, func(t *testing.T) {
				b := testBuilder(t)
				g, err := b.Plan(mustVariant(t, name), Inputs{
					Sources:   []string{"//a:c.cc"},
					Generated: gens,
				}, msg.NewReporter(&bytes.Buffer{}))
				assert.ErrorIs(t, err, ErrResidualCount)
				assert.Nil(t, g)
			})
		}
	}
}

func TestPlanCoreProto(t *testing.T) {
	b := testBuilder(t)
	var log bytes.Buffer

	g, err := b.Plan(mustVariant(t, "TFCoreProto"), Inputs{
		Generated: []string{
			"//tensorflow/core:framework/graph.pb.cc",
			"//tensorflow/core:framework/graph.pb.h",
			"//tensorflow/core:framework/graph.pb_text.cc",
			"//tensorflow/core:framework/graph.pb_text.h",
			"//tensorflow/core:framework/graph.pb_text-impl.h",
			"//tensorflow/core:util/version_info.cc",
		},
	}, msg.NewReporter(&log))
	require.NoError(t, err)

	require.Len(t, g.EdgesOf(graph.CompileProto), 1)
	require.Len(t, g.EdgesOf(graph.CompileProtoText), 1)
	assert.Empty(t, g.EdgesOf(graph.GenerateVersionInfo))

	term := g.Terminal()
	assert.Equal(t, graph.LinkStaticArchive, term.Rule)
	assert.Equal(t, []string{"tf_core_proto.a"}, term.Outputs)
	assert.Equal(t, []string{
		"tensorflow/core/framework/graph.pb.o",
		"tensorflow/core/framework/graph.pb_text.o",
	}, term.Inputs)

	// leftovers are reported, not fatal, for the archive
	assert.Contains(t, log.String(), "tensorflow/core/util/version_info.cc")
}

func TestPlanTerminalCompleteness(t *testing.T) {
	in := Inputs{Sources: frameworkSrcs, Generated: frameworkGens}
	for _, v := range Variants {
		t.Run(v.Name, func(t *testing.T) {
			g, err := testBuilder(t).Plan(v, in, msg.NewReporter(&bytes.Buffer{}))
			require.NoError(t, err)
			require.NotNil(t, g.Terminal())
			assert.ElementsMatch(t, objectOutputs(g), g.Terminal().Inputs)

			terminals := 0
			for _, e := range g.Edges {
				if e.Rule.Terminal() {
					terminals++
				}
			}
			assert.Equal(t, 1, terminals)
		})
	}
}

func TestPlanNoDoubleCompilation(t *testing.T) {
	b := testBuilder(t)
	var log bytes.Buffer

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{"//a:b.cc", "//a:b.cc", "a/b.cc", "//a:c.cc", "//a:p.proto", "//a:p.proto"},
	}, msg.NewReporter(&log))
	require.NoError(t, err)

	objs := g.EdgesOf(graph.CompileObject)
	require.Len(t, objs, 2)
	seen := map[string]bool{}
	for _, e := range objs {
		require.False(t, seen[e.Inputs[0]], e.Inputs[0])
		seen[e.Inputs[0]] = true
	}
	assert.Len(t, g.EdgesOf(graph.CompileProto), 1)
	assert.Equal(t, []string{"a/b.o", "a/c.o"}, g.Terminal().Inputs)
	assert.Contains(t, log.String(), "skipped duplicate edges (3)")
}

func TestPlanConfigExcludes(t *testing.T) {
	b := testBuilder(t)
	b.tc.Excludes = []string{"**/cuda/**"}

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{"//tf/core:kernels/cuda/conv.cc", "//tf/core:kernels/conv.cc"},
	}, msg.NewReporter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"tf/core/kernels/conv.o"}, g.Terminal().Inputs)
}

func TestPlanRevisionComment(t *testing.T) {
	b := testBuilder(t)
	b.revision = "0123456789ab"

	g, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{}, msg.NewReporter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"automatically generated by shogun ProtoText", "source revision 0123456789ab"}, g.Comments)
	assert.Empty(t, g.Terminal().Inputs)
}

func writeDump(t *testing.T, dir, name string, labels []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(labels, "\n")+"\n"), 0o644))
	return path
}

func TestPlanReportsUnnamedExternalRepo(t *testing.T) {
	b := testBuilder(t)
	var log bytes.Buffer

	_, err := b.Plan(mustVariant(t, "ProtoText"), Inputs{
		Sources: []string{"//a:b.cc", "@//tools:x", "@ext//x:y"},
	}, msg.NewReporter(&log))
	require.NoError(t, err)
	assert.Contains(t, log.String(), "requires external deps: @, ext\n")
}

func TestReadList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte("  //a:b.cc \n\n\t//a:c.h\n"), 0o644))

	labels, err := readList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"//a:b.cc", "//a:c.h"}, labels)

	_, err = readList(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildWritesOutput(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)
	var log bytes.Buffer

	src := writeDump(t, dir, "src.txt", []string{"//a:b.proto", "//a:b.cc"})
	out := filepath.Join(dir, "proto_text.ninja")

	err := b.Build(mustVariant(t, "ProtoText"), Options{Sources: src, Output: out}, msg.NewReporter(&log))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "build proto_text: CXX_EXEC a/b.o\n")
	assert.Contains(t, log.String(), "wrote "+out)
}

func TestBuildStdout(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)

	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	gen := writeDump(t, dir, "gen.txt", []string{"//a:b.pb.h", "//a:b.pb.cc"})
	err := b.Build(mustVariant(t, "TFCoreProto"), Options{Generated: gen, Output: "-"}, msg.NewReporter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "build tf_core_proto.a: STATIC a/b.pb.o\n")
}

func TestBuildMissingInputs(t *testing.T) {
	b := testBuilder(t)
	rep := msg.NewReporter(&bytes.Buffer{})
	dir := t.TempDir()

	err := b.Build(mustVariant(t, "TFFrame"), Options{Generated: "x"}, rep)
	assert.ErrorIs(t, err, errMissingSources)

	err = b.Build(mustVariant(t, "TFCoreProto"), Options{}, rep)
	assert.ErrorIs(t, err, errMissingGenerated)

	err = b.Build(mustVariant(t, "ProtoText"), Options{Sources: filepath.Join(dir, "nope.txt")}, rep)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildResidualWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)

	src := writeDump(t, dir, "src.txt", []string{"//a:c.cc"})
	gen := writeDump(t, dir, "gen.txt", []string{"//a:b.pb.cc"})
	out := filepath.Join(dir, "out.ninja")

	err := b.Build(mustVariant(t, "TFFrame"), Options{Sources: src, Generated: gen, Output: out}, msg.NewReporter(&bytes.Buffer{}))
	assert.ErrorIs(t, err, ErrResidualCount)
	assert.NoFileExists(t, out)
}

func TestBuildDiff(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)
	v := mustVariant(t, "ProtoText")

	src := writeDump(t, dir, "src.txt", []string{"//a:b.cc"})
	out := filepath.Join(dir, "proto_text.ninja")
	require.NoError(t, b.Build(v, Options{Sources: src, Output: out}, msg.NewReporter(&bytes.Buffer{})))

	var log bytes.Buffer
	require.NoError(t, b.Build(v, Options{Sources: src, Output: out, Diff: true}, msg.NewReporter(&log)))
	assert.Contains(t, log.String(), "is up to date")

	src = writeDump(t, dir, "src.txt", []string{"//a:b.cc", "//a:c.cc"})
	log.Reset()
	require.NoError(t, b.Build(v, Options{Sources: src, Output: out, Diff: true}, msg.NewReporter(&log)))
	assert.Contains(t, log.String(), "differs from the generated build file")
	assert.Contains(t, log.String(), "+build a/c.o: CXX_OBJ a/c.cc")

	// diff mode never writes
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "a/c.cc")
}

func TestBuildAll(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)

	src := writeDump(t, dir, "src.txt", frameworkSrcs)
	gen := writeDump(t, dir, "gen.txt", frameworkGens)
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	var log bytes.Buffer
	require.NoError(t, b.BuildAll(AllOptions{Sources: src, Generated: gen, OutDir: outDir}, &log))

	for _, v := range Variants {
		assert.FileExists(t, filepath.Join(outDir, v.DefaultOutput))
	}

	// logs come out in variant order
	text := log.String()
	last := -1
	for _, v := range Variants {
		i := strings.Index(text, filepath.Join(outDir, v.DefaultOutput))
		require.GreaterOrEqual(t, i, 0, v.Name)
		assert.Greater(t, i, last, v.Name)
		last = i
	}
}

func TestBuildAllReportsFailure(t *testing.T) {
	dir := t.TempDir()
	b := testBuilder(t)

	src := writeDump(t, dir, "src.txt", frameworkSrcs)
	gen := writeDump(t, dir, "gen.txt", []string{"//a:b.pb.cc"})

	err := b.BuildAll(AllOptions{Sources: src, Generated: gen, OutDir: dir}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrResidualCount)
}

func TestVariantByName(t *testing.T) {
	for _, name := range []string{"ProtoText", "prototext", "proto-text", "TFLibAndroid", "tf-lib-android"} {
		_, ok := VariantByName(name)
		assert.True(t, ok, name)
	}
	_, ok := VariantByName("TFLite")
	assert.False(t, ok)

	names := map[string]bool{}
	for _, v := range Variants {
		assert.False(t, names[v.Name])
		names[v.Name] = true
		assert.True(t, v.Terminal.Terminal(), v.Name)
		assert.True(t, v.NeedsSources() || v.NeedsGenerated(), v.Name)
	}
	assert.Len(t, names, 4)
}
