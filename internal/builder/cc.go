package builder

import "os"

const fallbackCxx = "g++"

// findCompiler returns the C++ compiler named by $CXX, or g++. $CXX is read
// when the build file is generated, not when ninja runs it.
func findCompiler() string {
	if cxx := os.Getenv("CXX"); cxx != "" {
		return cxx
	}
	return fallbackCxx
}
