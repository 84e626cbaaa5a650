package builder

import (
	"strings"

	"github.com/qobs-build/shogun/internal/classify"
	"github.com/qobs-build/shogun/internal/graph"
)

// Bucket tags shared by every variant's classification tables.
const (
	TagProto       classify.Tag = "proto"       // .proto, or a generated file mapped back to one
	TagProtoText   classify.Tag = "proto-text"  // same, for proto_text outputs
	TagDerived     classify.Tag = "derived"     // generated alongside a tagged file, nothing to do
	TagHeader      classify.Tag = "header"
	TagThirdParty  classify.Tag = "third-party"
	TagPlatform    classify.Tag = "platform"    // windows only sources
	TagAccelerator classify.Tag = "accelerator" // stream_executor, CPU-only builds skip it
	TagExcluded    classify.Tag = "excluded"    // [exclude] sources from the config
	TagCompile     classify.Tag = "compile"
)

// Variant describes one of the fixed build graphs. The pipeline in Plan is
// the same for all of them; only the tables and the final artifact differ.
type Variant struct {
	Name          string
	Aliases       []string
	Short         string
	Artifact      string
	Terminal      graph.RuleKind
	DefaultOutput string

	// Sources classifies the source list; nil means the variant takes none.
	Sources classify.Table
	// Generated classifies the generated file list; nil means none.
	Generated classify.Table

	// ProtosFromSources emits PROTOC edges for .proto files of the source
	// list instead of deriving them from the generated list.
	ProtosFromSources bool
	// VersionInfo requires exactly one generated file to be left over after
	// classification and binds it to GEN_VERSION_INFO.
	VersionInfo bool
}

func (v Variant) NeedsSources() bool   { return v.Sources != nil }
func (v Variant) NeedsGenerated() bool { return v.Generated != nil }

var (
	protoTextSources = classify.Table{
		{Tag: TagProto, Match: classify.Suffix(graph.ProtoExt)},
		{Tag: TagHeader, Match: classify.Suffix(".h")},
		{Tag: TagThirdParty, Match: classify.Prefix("third_party")},
		{Tag: TagPlatform, Match: classify.Suffix("windows/env_time.cc")},
		{Tag: TagCompile, Match: classify.Suffix(".cc")},
	}

	coreProtoGenerated = classify.Table{
		{Tag: TagProto, Match: classify.Suffix(graph.PbHExt)},
		{Tag: TagCompile, Match: classify.Suffix(graph.PbCCExt)},
		{Tag: TagProtoText, Match: classify.Suffix(graph.PbTextHExt)},
		{Tag: TagCompile, Match: classify.Suffix(graph.PbTextCCExt)},
		{Tag: TagDerived, Match: classify.Suffix(graph.PbTextImplHExt)},
	}

	frameworkGenerated = classify.Table{
		{Tag: TagProto, Match: classify.Suffix(graph.PbCCExt)},
		{Tag: TagDerived, Match: classify.Suffix(graph.PbHExt)},
		{Tag: TagProtoText, Match: classify.Suffix(graph.PbTextCCExt)},
		{Tag: TagDerived, Match: classify.Suffix(graph.PbTextHExt)},
		{Tag: TagDerived, Match: classify.Suffix(graph.PbTextImplHExt)},
	}

	frameworkSources = classify.Table{
		{Tag: TagProto, Match: classify.Suffix(graph.ProtoExt)},
		{Tag: TagHeader, Match: classify.Suffix(".h")},
		{Tag: TagThirdParty, Match: classify.Prefix("third_party")},
		{Tag: TagPlatform, Match: classify.Suffix("windows/env_time.cc")},
		{Tag: TagPlatform, Match: classify.Contains("platform/windows")},
		{Tag: TagAccelerator, Match: classify.Contains("stream_executor")},
		{Tag: TagCompile, Match: classify.Suffix(".cc")},
	}
)

// Variants in dependency order: proto_text is needed to generate the
// sources of the others.
var Variants = []Variant{
	{
		Name:              "ProtoText",
		Aliases:           []string{"proto-text"},
		Short:             "Build the proto_text helper executable",
		Artifact:          "proto_text",
		Terminal:          graph.LinkExecutable,
		DefaultOutput:     "proto_text.ninja",
		Sources:           protoTextSources,
		ProtosFromSources: true,
	},
	{
		Name:          "TFCoreProto",
		Aliases:       []string{"tf-core-proto"},
		Short:         "Build the tf_core_proto.a static archive",
		Artifact:      "tf_core_proto.a",
		Terminal:      graph.LinkStaticArchive,
		DefaultOutput: "tf_core_proto.ninja",
		Generated:     coreProtoGenerated,
	},
	{
		Name:          "TFFrame",
		Aliases:       []string{"tf-frame"},
		Short:         "Build libtensorflow_framework.so",
		Artifact:      "libtensorflow_framework.so",
		Terminal:      graph.LinkSharedLibrary,
		DefaultOutput: "libtensorflow_framework.ninja",
		Sources:       frameworkSources,
		Generated:     frameworkGenerated,
		VersionInfo:   true,
	},
	{
		Name:          "TFLibAndroid",
		Aliases:       []string{"tf-lib-android"},
		Short:         "Build libtensorflow_android.so",
		Artifact:      "libtensorflow_android.so",
		Terminal:      graph.LinkSharedLibrary,
		DefaultOutput: "libtensorflow_android.ninja",
		Sources:       frameworkSources,
		Generated:     frameworkGenerated,
		VersionInfo:   true,
	},
}

// VariantByName looks a variant up by name or alias, ignoring case.
func VariantByName(name string) (Variant, bool) {
	for _, v := range Variants {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
		for _, alias := range v.Aliases {
			if strings.EqualFold(alias, name) {
				return v, true
			}
		}
	}
	return Variant{}, false
}
