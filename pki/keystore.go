package pki

import (
	"crypto"
	"errors"
)

// KeyStore abstracts private-key operations so that the issuing authority
// can work with software keys held in memory, or in future HSM/KMS-backed
// keys, without changing calling code.
//
// A keyID uniquely identifies a key managed by the store; its format is
// implementation-defined.
type KeyStore interface {
	// GenerateKey creates a new signing key and returns an opaque identifier.
	GenerateKey() (keyID string, err error)

	// Signer returns a [crypto.Signer] for the key identified by keyID.
	// x509.CreateCertificate only needs Sign and Public.
	Signer(keyID string) (crypto.Signer, error)

	// ExportPEM returns the private key PEM-encoded so it can be persisted
	// alongside the issued certificate and re-imported to sign children.
	ExportPEM(keyID string) (string, error)

	// ImportPEM loads a PEM-encoded private key into the store and returns
	// its key ID.
	ImportPEM(pemData string) (keyID string, err error)

	// Delete removes the key identified by keyID from the store.
	Delete(keyID string) error
}

// ErrKeyNotFound is returned when the referenced key ID does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidPEM is returned when PEM data cannot be decoded or parsed.
var ErrInvalidPEM = errors.New("invalid PEM data")
