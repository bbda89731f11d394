package cache

import "fmt"

const (
	// SignatureSamples bounds how many bytes of the text are hashed.
	SignatureSamples = 2048

	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// Stride returns the sampling stride for a text of n bytes.
func Stride(n int) int {
	return max(1, n/SignatureSamples)
}

// SampledHash folds every stride-th byte of text into a 32-bit FNV-1a style
// hash.
func SampledHash(text string) uint32 {
	h := fnvOffset32
	step := Stride(len(text))
	for i := 0; i < len(text); i += step {
		h ^= uint32(text[i])
		h *= fnvPrime32
	}
	return h
}

// Signature is the cache key for a document's current content. Any change in
// doc type, text length, file size or sampled bytes yields a new signature.
func Signature(docType, text string, fileSize int64) string {
	return fmt.Sprintf("%s:%d:%d:%08x", docType, len(text), fileSize, SampledHash(text))
}
