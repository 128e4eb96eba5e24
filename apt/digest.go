package apt

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// checksumAlgorithm names a digest algorithm as it appears in Release
// checksum sections and in Packages index fields.
type checksumAlgorithm struct {
	// Name is the canonical section/field name (e.g. "SHA512").
	Name string
	// New returns a fresh hash instance for this algorithm.
	New func() hash.Hash
}

// releaseAlgorithms is the ordered preference table for Release checksum
// sections, strongest first. Exactly one section is used per download; the
// first one present wins and algorithms are never mixed within one run.
var releaseAlgorithms = []checksumAlgorithm{
	{Name: "SHA512", New: sha512.New},
	{Name: "SHA256", New: sha256.New},
}

// checksumField pairs a control-field spelling with its algorithm.
type checksumField struct {
	Field string
	Alg   checksumAlgorithm
}

// packageFieldSpellings lists, in preference order, the control-field
// spellings accepted when verifying a payload against its index entry.
// Deliberately broader than the section table: index generators disagree on
// field capitalization, so both spellings of each algorithm are probed.
var packageFieldSpellings = []checksumField{
	{Field: "SHA512", Alg: checksumAlgorithm{Name: "SHA512", New: sha512.New}},
	{Field: "sha512", Alg: checksumAlgorithm{Name: "SHA512", New: sha512.New}},
	{Field: "SHA256", Alg: checksumAlgorithm{Name: "SHA256", New: sha256.New}},
	{Field: "sha256", Alg: checksumAlgorithm{Name: "SHA256", New: sha256.New}},
}

// verifyDigest checks data against the expected hex digest.
func (a checksumAlgorithm) verifyDigest(data []byte, want string) error {
	h := a.New()
	h.Write(data)
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("%w: %s digest %s, recorded %s", ErrChecksumMismatch, a.Name, got, want)
	}
	return nil
}

// selectFirstAvailable returns the first candidate for which probe reports
// presence. It expresses the ordered-preference loops (checksum algorithm,
// compression format) as a single early-exit scan.
func selectFirstAvailable[T any](candidates []T, probe func(T) bool) (T, bool) {
	for _, c := range candidates {
		if probe(c) {
			return c, true
		}
	}
	var zero T
	return zero, false
}
