// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"strings"

	"github.com/coldforge/veriwipe/pkg/signer"
)

// DirTrustStore resolves fingerprints against a directory of
// `<fingerprint>.pub.pem` files, the shape a verifier on a different
// host would populate out of band from a fleet's signer roster.
type DirTrustStore struct {
	keys map[string]*ecdsa.PublicKey
}

// NewDirTrustStore loads every `*.pub.pem` file under dir, keyed by the
// fingerprint in its filename.
func NewDirTrustStore(dir string) (*DirTrustStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]*ecdsa.PublicKey)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pub.pem") {
			continue
		}
		fingerprint := strings.TrimSuffix(entry.Name(), ".pub.pem")
		key, err := signer.LoadPublicKey(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		keys[fingerprint] = key
	}

	return &DirTrustStore{keys: keys}, nil
}

// Lookup implements TrustStore.
func (d *DirTrustStore) Lookup(fingerprint string) (*ecdsa.PublicKey, bool) {
	key, ok := d.keys[fingerprint]
	return key, ok
}

// SingleKeyTrustStore trusts exactly one (fingerprint, public key)
// pair, the common same-host case where a device verifies its own
// just-emitted certificate against its own signer.
type SingleKeyTrustStore struct {
	fingerprint string
	key         *ecdsa.PublicKey
}

// NewSingleKeyTrustStore builds a TrustStore around one known keypair.
func NewSingleKeyTrustStore(fingerprint string, key *ecdsa.PublicKey) *SingleKeyTrustStore {
	return &SingleKeyTrustStore{fingerprint: fingerprint, key: key}
}

// Lookup implements TrustStore.
func (s *SingleKeyTrustStore) Lookup(fingerprint string) (*ecdsa.PublicKey, bool) {
	if fingerprint != s.fingerprint {
		return nil, false
	}
	return s.key, true
}
