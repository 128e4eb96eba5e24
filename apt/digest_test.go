package apt

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"
)

func TestVerifyDigest(t *testing.T) {
	data := []byte("hello repository")
	sum := sha512.Sum512(data)
	want := hex.EncodeToString(sum[:])

	alg := releaseAlgorithms[0]
	if alg.Name != "SHA512" {
		t.Fatalf("strongest algorithm is %s, want SHA512", alg.Name)
	}
	if err := alg.verifyDigest(data, want); err != nil {
		t.Errorf("verifyDigest failed on matching digest: %v", err)
	}
	if err := alg.verifyDigest(data, "deadbeef"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("verifyDigest = %v, want ErrChecksumMismatch", err)
	}
}

func TestPackageFieldSpellings_Order(t *testing.T) {
	// The spelling table drives payload verification: strongest first,
	// canonical spelling before lowercase.
	want := []string{"SHA512", "sha512", "SHA256", "sha256"}
	if len(packageFieldSpellings) != len(want) {
		t.Fatalf("table has %d entries, want %d", len(packageFieldSpellings), len(want))
	}
	for i, s := range packageFieldSpellings {
		if s.Field != want[i] {
			t.Errorf("spelling[%d] = %q, want %q", i, s.Field, want[i])
		}
	}
}

func TestSelectFirstAvailable(t *testing.T) {
	got, ok := selectFirstAvailable([]string{"gz", "bz2", "xz"}, func(s string) bool { return s != "gz" })
	if !ok || got != "bz2" {
		t.Errorf("selectFirstAvailable = %q, %v; want bz2, true", got, ok)
	}

	_, ok = selectFirstAvailable([]string{"gz"}, func(string) bool { return false })
	if ok {
		t.Error("selectFirstAvailable reported a match where none exists")
	}
}
