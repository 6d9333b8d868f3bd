package domain

import (
	"hash/fnv"
	"sort"
)

// HashVersion identifies the bucketing algorithm recorded on assignments.
// Changing StableHash or SelectVariant requires a new version.
const HashVersion = "fnv1a64-v1"

const hashSeparator = 0x1f

// StableHash maps (experimentID, entityID) to a value in [0, 1).
//
// The input is "v1", experimentID and entityID joined by the ASCII unit
// separator, hashed with 64-bit FNV-1a. The top 53 bits are divided by 2^53
// so the result is exactly representable and never reaches 1.
func StableHash(experimentID, entityID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("v1"))
	_, _ = h.Write([]byte{hashSeparator})
	_, _ = h.Write([]byte(experimentID))
	_, _ = h.Write([]byte{hashSeparator})
	_, _ = h.Write([]byte(entityID))
	return float64(h.Sum64()>>11) / (1 << 53)
}

// SelectVariant maps a hash value onto the cumulative weight ranges of the
// variants taken in lexicographic name order. Zero-weight variants never win.
func SelectVariant(variants []Variant, h float64) string {
	sorted := make([]Variant, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	point := h * TotalWeight
	cum := 0
	last := ""
	for _, v := range sorted {
		if v.Weight <= 0 {
			continue
		}
		cum += v.Weight
		last = v.Name
		if point < float64(cum) {
			return v.Name
		}
	}
	return last
}

// Bucket is the pure assignment function: the variant a fresh entity lands in.
func Bucket(exp *Experiment, entityID string) (string, float64) {
	h := StableHash(exp.ID, entityID)
	return SelectVariant(exp.Variants, h), h
}
