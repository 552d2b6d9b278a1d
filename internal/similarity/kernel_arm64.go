//go:build arm64

package similarity

import "golang.org/x/sys/cpu"

// hasNEON is effectively always true on arm64 (NEON is baseline), but the
// field is kept for symmetry with the amd64 dispatcher and in case a future
// platform gates it behind a feature flag.
var hasNEON = cpu.ARM64.HasASIMD

const (
	hasKernel      = true
	kernelMinWidth = 8
)

func dotAndNormsKernel(a, b []float32) (dot, normA, normB float32) {
	if hasNEON && len(a) >= 16 {
		return dotAndNorms8(a, b)
	}
	return dotAndNormsGeneric(a, b)
}

func capability() string {
	if hasNEON {
		return "NEON (8-wide unroll, portable Go)"
	}
	return "generic 4-wide unroll"
}

// dotAndNorms8 mirrors the amd64 AVX2-tier unroll: the lane count tracks
// NEON's 128-bit register width over four float32 lanes, doubled to cut
// the serial dependency chain in half.
func dotAndNorms8(a, b []float32) (dot, normA, normB float32) {
	n := len(a)
	i := 0

	var d [8]float32
	var na [8]float32
	var nb [8]float32

	for ; i+8 <= n; i += 8 {
		for l := 0; l < 8; l++ {
			av, bv := a[i+l], b[i+l]
			d[l] += av * bv
			na[l] += av * av
			nb[l] += bv * bv
		}
	}

	for l := 0; l < 8; l++ {
		dot += d[l]
		normA += na[l]
		normB += nb[l]
	}

	for ; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	return dot, normA, normB
}
