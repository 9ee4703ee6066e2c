// Package vectors holds the vector math shared by the document stores and the evaluator.
package vectors

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Mean returns the element-wise mean of vs. All vectors must share a dimension.
func Mean(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float32, len(vs[0]))
	for _, v := range vs {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	for i := range out {
		out[i] /= float32(len(vs))
	}
	return out
}

// ToBytes encodes v as little-endian float32s.
func ToBytes(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// FromBytes decodes a little-endian float32 slice written by ToBytes.
func FromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	_ = binary.Read(bytes.NewReader(b[:len(out)*4]), binary.LittleEndian, &out)
	return out
}

// Ranked is an index with its similarity score.
type Ranked struct {
	Index int
	Score float64
}

// TopK scores every candidate against query and returns at most k of them,
// best first. Ties keep candidate order.
func TopK(query []float32, candidates [][]float32, k int) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, Ranked{Index: i, Score: Cosine(query, c)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if k >= 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
