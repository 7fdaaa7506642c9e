package store

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// FingerprintDims is the width of the text fingerprint column.
const FingerprintDims = 64

// Fingerprint hashes the character trigrams of text into a unit vector so
// that near-duplicate strings land close together under cosine distance.
// Case and runs of whitespace are ignored. Text shorter than one trigram
// returns nil.
func Fingerprint(text string) []float32 {
	runes := []rune(normalize(text))
	if len(runes) < 3 {
		return nil
	}

	vec := make([]float32, FingerprintDims)
	h := fnv.New32a()
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%FingerprintDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}
