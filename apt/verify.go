package apt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// trustContext holds the repository keyring for one download. The key
// material is written below the download's scratch directory so that it
// never outlives the call; the caller removes the directory on every exit
// path.
type trustContext struct {
	keyring openpgp.EntityList
}

// newTrustContext materializes the repository key into workdir and parses
// it into a fresh keyring. Both ASCII-armored and binary key material are
// accepted.
func newTrustContext(workdir string, key []byte) (*trustContext, error) {
	if err := os.WriteFile(filepath.Join(workdir, "trusted.gpg"), key, 0600); err != nil {
		return nil, fmt.Errorf("materializing repository key: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(key))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(key))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable repository key: %v", ErrSignature, err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("%w: repository key contains no usable key", ErrSignature)
	}
	return &trustContext{keyring: keyring}, nil
}

// verifyInline checks a clearsigned InRelease document and returns the
// signed plaintext. The signature must both decode correctly and resolve to
// a signer in the keyring; either failing alone fails verification.
func (t *trustContext) verifyInline(data []byte) ([]byte, error) {
	block, _ := clearsign.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: InRelease carries no clearsigned block", ErrSignature)
	}
	signer, err := openpgp.CheckDetachedSignature(t.keyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: signer not found in repository keyring", ErrSignature)
	}
	return block.Plaintext, nil
}

// verifyDetached checks a Release document against its detached
// Release.gpg signature. Armored signatures are tried first, binary ones as
// fallback.
func (t *trustContext) verifyDetached(release, signature []byte) error {
	signer, err := openpgp.CheckArmoredDetachedSignature(t.keyring, bytes.NewReader(release), bytes.NewReader(signature), nil)
	if err != nil {
		signer, err = openpgp.CheckDetachedSignature(t.keyring, bytes.NewReader(release), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if signer == nil {
		return fmt.Errorf("%w: signer not found in repository keyring", ErrSignature)
	}
	return nil
}

// stripClearsign returns the plaintext of a clearsigned document without
// verifying it. Used for unauthenticated downloads, where InRelease still
// arrives wrapped in its signature envelope. Unwrapped input is returned
// as-is.
func stripClearsign(data []byte) []byte {
	block, _ := clearsign.Decode(data)
	if block == nil {
		return data
	}
	return block.Plaintext
}
