package graph

import "fmt"

// Emitter appends edges to a graph, one method per rule kind. It remembers
// every output it has produced: an edge whose outputs are already claimed is
// dropped and listed in Skipped, so duplicated labels in a dump never yield
// two edges for the same file.
type Emitter struct {
	g       *Graph
	claimed map[string]struct{}
	objects []string

	Skipped []string
}

func NewEmitter(g *Graph) *Emitter {
	return &Emitter{g: g, claimed: make(map[string]struct{})}
}

func (e *Emitter) emit(edge Edge) bool {
	for _, out := range edge.Outputs {
		if _, ok := e.claimed[out]; ok {
			e.Skipped = append(e.Skipped, fmt.Sprintf("%s %v", edge.Rule, edge.Inputs))
			return false
		}
	}
	for _, out := range edge.Outputs {
		e.claimed[out] = struct{}{}
	}
	e.g.add(edge)
	return true
}

// Proto emits one PROTOC edge per .proto file and returns the generated
// .pb.cc files.
func (e *Emitter) Proto(protos []string) []string {
	var ccs []string
	for _, proto := range protos {
		outs := ProtoOutputs(proto)
		if e.emit(Edge{Rule: CompileProto, Inputs: []string{proto}, Outputs: outs}) {
			ccs = append(ccs, outs[0])
		}
	}
	return ccs
}

// ProtoText emits one PROTO_TEXT edge per .proto file and returns the
// generated .pb_text.cc files. tool is the proto_text binary, which every
// edge depends on without passing it as an input.
func (e *Emitter) ProtoText(protos []string, tool string) []string {
	var ccs []string
	for _, proto := range protos {
		outs := ProtoTextOutputs(proto)
		edge := Edge{Rule: CompileProtoText, Inputs: []string{proto}, Outputs: outs}
		if tool != "" {
			edge.Implicit = []string{tool}
		}
		if e.emit(edge) {
			ccs = append(ccs, outs[0])
		}
	}
	return ccs
}

// VersionInfo emits the edge generating out from the source tree's version
// control state. It has no file inputs.
func (e *Emitter) VersionInfo(out string) string {
	e.emit(Edge{Rule: GenerateVersionInfo, Outputs: []string{out}})
	return out
}

// Objects emits one CXX_OBJ edge per compilation unit and returns the object
// files produced by this call.
func (e *Emitter) Objects(srcs []string) []string {
	var objs []string
	for _, src := range srcs {
		obj := ObjectOutput(src)
		if e.emit(Edge{Rule: CompileObject, Inputs: []string{src}, Outputs: []string{obj}}) {
			objs = append(objs, obj)
		}
	}
	e.objects = append(e.objects, objs...)
	return objs
}

// Terminal emits the single link or archive edge over every object produced
// through Objects so far.
func (e *Emitter) Terminal(kind RuleKind, artifact string) (*Edge, error) {
	edge := Edge{
		Rule:    kind,
		Inputs:  append([]string(nil), e.objects...),
		Outputs: []string{artifact},
	}
	if err := e.g.setTerminal(edge); err != nil {
		return nil, err
	}
	return e.g.Terminal(), nil
}
