package store

import (
	"math"
	"testing"

	"cast-extractor/internal/export"
)

func TestFingerprintIsUnitVector(t *testing.T) {
	vec := Fingerprint("Bonjour tout le monde")
	if len(vec) != FingerprintDims {
		t.Fatalf("dims: got %d", len(vec))
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm: got %f", norm)
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	a := Fingerprint("Hello   World")
	b := Fingerprint("hello world")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fingerprints differ at %d", i)
		}
	}
	if Fingerprint("ab") != nil {
		t.Error("short text produced a fingerprint")
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestFingerprintSimilarity(t *testing.T) {
	base := Fingerprint("Il faut retrouver la clef du grenier")
	near := Fingerprint("Il faut retrouver la clef du grenier !")
	far := Fingerprint("0123456789 xyz qwv")
	if cosine(base, near) <= cosine(base, far) {
		t.Errorf("near %f not closer than far %f", cosine(base, near), cosine(base, far))
	}
}

func TestTextEntriesDropsEmpty(t *testing.T) {
	in := []export.Entry{{Key: "a", Text: "x"}, {Key: "b", Kind: export.KindSound}, {Key: "c", Text: "y"}}
	out := textEntries(in)
	if len(out) != 2 || out[0].Key != "a" || out[1].Key != "c" {
		t.Errorf("got %+v", out)
	}
	if len(in) != 3 || in[1].Key != "b" {
		t.Error("input modified")
	}
}
