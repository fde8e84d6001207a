// Package vector packs embeddings for storage and provides the small numeric
// helpers shared by the worker and the ranking engine.
package vector

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

const float32Size = 4

// Encode packs v as little-endian float32 values and armors the bytes with
// standard base64. The dimension is returned separately and must be stored
// alongside the text.
func Encode(v []float32) (string, int) {
	buf := make([]byte, len(v)*float32Size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*float32Size:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf), len(v)
}

// Decode reverses Encode. The stored dimension is authoritative: a payload
// whose byte length disagrees with it is treated as corrupt.
func Decode(b64 string, dim int) ([]float32, error) {
	if dim < 1 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode embedding base64: %w", err)
	}
	if len(raw) != dim*float32Size {
		return nil, fmt.Errorf("embedding payload is %d bytes, want %d for dim %d", len(raw), dim*float32Size, dim)
	}
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*float32Size:]))
	}
	return out, nil
}

func AllFinite(v []float32) bool {
	for _, f := range v {
		x := float64(f)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// FromFloat64 narrows a service response to float32, the storage precision.
func FromFloat64(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
