//go:build amd64

package similarity

import "golang.org/x/sys/cpu"

// hasAVX512 and hasAVX2 mirror the feature-detection pattern used by this
// codebase's other vectorized kernels: probe once at init via
// golang.org/x/sys/cpu, then dispatch on vector width.
var (
	hasAVX512 = cpu.X86.HasAVX512F
	hasAVX2   = cpu.X86.HasAVX2 && cpu.X86.HasFMA
)

const (
	hasKernel      = true
	kernelMinWidth = 8
)

// dotAndNormsKernel picks the widest unroll this CPU supports. Unlike a
// true SIMD intrinsic, these are still portable Go loops — see DESIGN.md
// for why no Plan 9 assembly backs this dispatch — but the unroll width is
// chosen to track the lane width the detected ISA would offer, so the loop
// shape at least matches what the hardware could do.
func dotAndNormsKernel(a, b []float32) (dot, normA, normB float32) {
	switch {
	case hasAVX512 && len(a) >= 64:
		return dotAndNorms16(a, b)
	case hasAVX2 && len(a) >= 32:
		return dotAndNorms8(a, b)
	default:
		return dotAndNormsGeneric(a, b)
	}
}

func capability() string {
	switch {
	case hasAVX512:
		return "AVX-512F (16-wide unroll, portable Go)"
	case hasAVX2:
		return "AVX2+FMA (8-wide unroll, portable Go)"
	default:
		return "SSE baseline (generic 4-wide unroll)"
	}
}

// dotAndNorms8 accumulates eight independent lanes to reduce the serial
// dependency chain; this is the AVX2 tier.
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

// dotAndNorms16 doubles the lane count again for the AVX-512 tier.
func dotAndNorms16(a, b []float32) (dot, normA, normB float32) {
	n := len(a)
	i := 0

	var d [16]float32
	var na [16]float32
	var nb [16]float32

	for ; i+16 <= n; i += 16 {
		for l := 0; l < 16; l++ {
			av, bv := a[i+l], b[i+l]
			d[l] += av * bv
			na[l] += av * av
			nb[l] += bv * bv
		}
	}

	for l := 0; l < 16; l++ {
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
