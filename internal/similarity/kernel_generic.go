//go:build !amd64 && !arm64

package similarity

// No architecture-specific kernel is wired up for this platform; every
// call falls through to dotAndNormsGeneric.
const (
	hasKernel       = false
	kernelMinWidth  = 1 << 30 // effectively disables the kernel path
)

func dotAndNormsKernel(a, b []float32) (dot, normA, normB float32) {
	return dotAndNormsGeneric(a, b)
}

func capability() string {
	return "generic (no architecture-specific kernel for this platform)"
}
