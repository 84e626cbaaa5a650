package graph

import "strings"

const (
	ProtoExt       = ".proto"
	PbCCExt        = ".pb.cc"
	PbHExt         = ".pb.h"
	PbTextCCExt    = ".pb_text.cc"
	PbTextHExt     = ".pb_text.h"
	PbTextImplHExt = ".pb_text-impl.h"
	ObjectExt      = ".o"
)

var (
	protoOutputs     = []string{PbCCExt, PbHExt}
	protoTextOutputs = []string{PbTextCCExt, PbTextHExt, PbTextImplHExt}

	// longest first, ".pb_text.h" must not be mistaken for something shorter
	generatedExts = []string{PbTextImplHExt, PbTextCCExt, PbTextHExt, PbCCExt, PbHExt}
)

func swapExt(path, from, to string) string {
	return strings.TrimSuffix(path, from) + to
}

// ProtoOutputs returns the files protoc generates for a .proto file.
func ProtoOutputs(proto string) []string {
	out := make([]string, len(protoOutputs))
	for i, ext := range protoOutputs {
		out[i] = swapExt(proto, ProtoExt, ext)
	}
	return out
}

// ProtoTextOutputs returns the files proto_text generates for a .proto file.
func ProtoTextOutputs(proto string) []string {
	out := make([]string, len(protoTextOutputs))
	for i, ext := range protoTextOutputs {
		out[i] = swapExt(proto, ProtoExt, ext)
	}
	return out
}

// ProtoSource maps a generated protobuf file back to the .proto it came
// from. It is the inverse of ProtoOutputs and ProtoTextOutputs.
func ProtoSource(generated string) (string, bool) {
	for _, ext := range generatedExts {
		if strings.HasSuffix(generated, ext) {
			return swapExt(generated, ext, ProtoExt), true
		}
	}
	return "", false
}

// ObjectOutput returns the object file for a compilation unit, replacing the
// last extension with ".o".
func ObjectOutput(src string) string {
	slash := strings.LastIndexByte(src, '/')
	if dot := strings.LastIndexByte(src, '.'); dot > slash {
		return src[:dot] + ObjectExt
	}
	return src + ObjectExt
}
