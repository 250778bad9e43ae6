// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package signer manages the long-lived ECDSA-P256 keypair used to sign
// and verify certificates.
package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/stratastor/logger"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

const (
	privateKeyFile = "signer.key.pem"
	publicKeyFile  = "signer.pub.pem"

	privateKeyPerm = 0600
	publicKeyPerm  = 0644
)

// Signer signs and verifies certificate bytes with a single ECDSA-P256
// keypair read once at construction.
type Signer struct {
	logger      logger.Logger
	privateKey  *ecdsa.PrivateKey
	publicKey   *ecdsa.PublicKey
	fingerprint string
}

// New loads the keypair from dir, generating and persisting one on
// first use. The private key is written owner-read-write only; the
// public key is world-readable so verifiers on other hosts can fetch
// it out of band.
func New(log logger.Logger, dir string) (*Signer, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyLoadFailed).WithMetadata("path", dir)
	}

	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)

	priv, err := loadPrivateKey(privPath)
	if os.IsNotExist(err) {
		log.Info("no signer keypair found, generating one", "dir", dir)
		priv, err = generateAndPersist(privPath, pubPath)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyLoadFailed).WithMetadata("path", privPath)
	}

	fp, err := fingerprint(&priv.PublicKey)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerFingerprintMismatch)
	}

	return &Signer{
		logger:      log,
		privateKey:  priv,
		publicKey:   &priv.PublicKey,
		fingerprint: fp,
	}, nil
}

// Fingerprint is the first 16 hex characters of the SHA-256 of the
// public key's DER-encoded SubjectPublicKeyInfo, embedded in every
// certificate to allow trust-store lookup.
func (s *Signer) Fingerprint() string {
	return s.fingerprint
}

// Sign returns a base64-encoded ECDSA-P256 signature over canonical.
func (s *Signer) Sign(canonical []byte) (string, error) {
	digest := sha256.Sum256(canonical)
	sig, err := ecdsa.SignASN1(rand.Reader, s.privateKey, digest[:])
	if err != nil {
		return "", vwerrors.Wrap(err, vwerrors.SignerSignFailed)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks signatureB64 against canonical using pubKey. It does
// not consult s's own keypair: a verifier typically checks a
// certificate's signature against whatever public key its fingerprint
// resolves to in a trust store, which may not be this process's key.
func Verify(pubKey *ecdsa.PublicKey, canonical []byte, signatureB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, vwerrors.Wrap(err, vwerrors.SignerVerifyFailed).WithMetadata("reason", "bad base64")
	}
	digest := sha256.Sum256(canonical)
	return ecdsa.VerifyASN1(pubKey, digest[:], sig), nil
}

// PublicKey returns the signer's own public key, e.g. to seed a trust
// store under its fingerprint.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return s.publicKey
}

func fingerprint(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])[:16], nil
}

func loadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, vwerrors.New(vwerrors.SignerKeyLoadFailed, "private key file is not valid PEM")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyLoadFailed)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, vwerrors.New(vwerrors.SignerKeyLoadFailed, "private key is not ECDSA")
	}
	return ecKey, nil
}

func generateAndPersist(privPath, pubPath string) (*ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyGenFailed)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyGenFailed)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, privateKeyPerm); err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyGenFailed).WithMetadata("path", privPath)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyGenFailed)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, publicKeyPerm); err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyGenFailed).WithMetadata("path", pubPath)
	}

	return priv, nil
}

// LoadPublicKey reads a PEM-encoded SubjectPublicKeyInfo public key
// file, used by the Verifier to resolve a certificate's fingerprint
// against a trust-store entry.
func LoadPublicKey(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, vwerrors.New(vwerrors.SignerKeyLoadFailed, "public key file is not valid PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerKeyLoadFailed)
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, vwerrors.New(vwerrors.SignerKeyLoadFailed, "public key is not ECDSA")
	}
	return ecKey, nil
}
