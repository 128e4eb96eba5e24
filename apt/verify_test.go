package apt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// newSigningEntity generates a throwaway key pair and returns it together
// with its armored public key, as a repository would publish it.
func newSigningEntity(t *testing.T) (*openpgp.Entity, []byte) {
	t.Helper()
	entity, err := openpgp.NewEntity("Test Repository", "test", "repo@example.test", nil)
	if err != nil {
		t.Fatal(err)
	}

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return entity, pub.Bytes()
}

// clearsignDoc wraps content in a clearsigned envelope.
func clearsignDoc(t *testing.T, entity *openpgp.Entity, content []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w, err := clearsign.Encode(&out, entity.PrivateKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(content)
	w.Close()
	return out.Bytes()
}

func TestVerifyInline(t *testing.T) {
	entity, pub := newSigningEntity(t)
	release := []byte("Codename: bullseye\nSHA256:\n aa 1 main/binary-amd64/Packages.gz\n")
	inRelease := clearsignDoc(t, entity, release)

	trust, err := newTrustContext(t.TempDir(), pub)
	if err != nil {
		t.Fatalf("newTrustContext failed: %v", err)
	}

	text, err := trust.verifyInline(inRelease)
	if err != nil {
		t.Fatalf("verifyInline failed: %v", err)
	}
	if !bytes.Contains(text, []byte("Codename: bullseye")) {
		t.Errorf("plaintext does not contain release content: %q", text)
	}
}

func TestVerifyInline_Tampered(t *testing.T) {
	entity, pub := newSigningEntity(t)
	inRelease := clearsignDoc(t, entity, []byte("Codename: bullseye\n"))

	// Flip the signed content inside the envelope.
	tampered := bytes.Replace(inRelease, []byte("bullseye"), []byte("bookworm"), 1)

	trust, err := newTrustContext(t.TempDir(), pub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trust.verifyInline(tampered); !errors.Is(err, ErrSignature) {
		t.Errorf("verifyInline = %v, want ErrSignature", err)
	}
}

func TestVerifyInline_WrongKey(t *testing.T) {
	signer, _ := newSigningEntity(t)
	_, otherPub := newSigningEntity(t)
	inRelease := clearsignDoc(t, signer, []byte("Codename: bullseye\n"))

	trust, err := newTrustContext(t.TempDir(), otherPub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trust.verifyInline(inRelease); !errors.Is(err, ErrSignature) {
		t.Errorf("verifyInline = %v, want ErrSignature", err)
	}
}

func TestVerifyInline_NoEnvelope(t *testing.T) {
	_, pub := newSigningEntity(t)
	trust, err := newTrustContext(t.TempDir(), pub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trust.verifyInline([]byte("Codename: bullseye\n")); !errors.Is(err, ErrSignature) {
		t.Errorf("verifyInline = %v, want ErrSignature", err)
	}
}

func TestVerifyDetached(t *testing.T) {
	entity, pub := newSigningEntity(t)
	release := []byte("Codename: bullseye\nSHA256:\n aa 1 main/binary-amd64/Packages.gz\n")

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, entity, bytes.NewReader(release), nil); err != nil {
		t.Fatal(err)
	}

	trust, err := newTrustContext(t.TempDir(), pub)
	if err != nil {
		t.Fatal(err)
	}
	if err := trust.verifyDetached(release, sig.Bytes()); err != nil {
		t.Errorf("verifyDetached failed: %v", err)
	}

	tampered := append([]byte("X"), release...)
	if err := trust.verifyDetached(tampered, sig.Bytes()); !errors.Is(err, ErrSignature) {
		t.Errorf("verifyDetached on tampered release = %v, want ErrSignature", err)
	}
}

func TestNewTrustContext_BadKey(t *testing.T) {
	if _, err := newTrustContext(t.TempDir(), []byte("not a key")); !errors.Is(err, ErrSignature) {
		t.Errorf("newTrustContext = %v, want ErrSignature", err)
	}
}

func TestStripClearsign(t *testing.T) {
	entity, _ := newSigningEntity(t)
	release := []byte("Codename: bullseye\n")
	inRelease := clearsignDoc(t, entity, release)

	stripped := stripClearsign(inRelease)
	if !bytes.Contains(stripped, []byte("Codename: bullseye")) {
		t.Errorf("stripped plaintext lost content: %q", stripped)
	}
	if bytes.Contains(stripped, []byte("BEGIN PGP")) {
		t.Errorf("stripped plaintext still carries the envelope: %q", stripped)
	}

	// Unwrapped input passes through untouched.
	if got := stripClearsign(release); !bytes.Equal(got, release) {
		t.Errorf("stripClearsign(plain) = %q, want %q", got, release)
	}
}
