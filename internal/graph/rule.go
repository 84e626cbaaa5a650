package graph

import "fmt"

// RuleKind is one of the fixed build steps a graph can contain.
type RuleKind int

const (
	CompileProto RuleKind = iota
	CompileProtoText
	CompileObject
	GenerateVersionInfo
	LinkExecutable
	LinkStaticArchive
	LinkSharedLibrary
)

// Kinds lists every RuleKind in declaration order.
var Kinds = []RuleKind{
	CompileProto,
	CompileProtoText,
	CompileObject,
	GenerateVersionInfo,
	LinkExecutable,
	LinkStaticArchive,
	LinkSharedLibrary,
}

var ruleNames = map[RuleKind]string{
	CompileProto:        "PROTOC",
	CompileProtoText:    "PROTO_TEXT",
	CompileObject:       "CXX_OBJ",
	GenerateVersionInfo: "GEN_VERSION_INFO",
	LinkExecutable:      "CXX_EXEC",
	LinkStaticArchive:   "STATIC",
	LinkSharedLibrary:   "CXX_SHLIB",
}

// String returns the rule name used in the build file.
func (k RuleKind) String() string {
	if name, ok := ruleNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RuleKind(%d)", int(k))
}

// Terminal reports whether k produces a graph's final artifact.
func (k RuleKind) Terminal() bool {
	return k == LinkExecutable || k == LinkStaticArchive || k == LinkSharedLibrary
}

// Template is the command a rule runs, with ninja's $in and $out.
type Template struct {
	Kind        RuleKind
	Command     string
	Description string
}
