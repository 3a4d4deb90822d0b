// Package pki implements the certificate issuance gateway: it generates
// keys, builds and signs X.509 certificates for the three chain positions
// (ROOT, INTERMEDIATE, END), and records the results in the certificate
// repository. Hierarchy and validity rules are the request engine's
// responsibility; by the time a call reaches this package the request has
// already been validated and accepted.
package pki

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/jmcleod/signet/request"
)

// Authority issues certificates against a certificate repository using a
// KeyStore for private-key operations.
type Authority struct {
	certs request.CertificateRepository
	keys  KeyStore
	now   func() time.Time
}

var _ request.IssuanceGateway = (*Authority)(nil)

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// WithKeyStore replaces the default software key store.
func WithKeyStore(ks KeyStore) AuthorityOption {
	return func(a *Authority) {
		a.keys = ks
	}
}

// WithClock replaces the authority's time source.
func WithClock(now func() time.Time) AuthorityOption {
	return func(a *Authority) {
		a.now = now
	}
}

// NewAuthority creates an Authority over the given certificate repository.
func NewAuthority(certs request.CertificateRepository, opts ...AuthorityOption) *Authority {
	a := &Authority{
		certs: certs,
		keys:  NewSoftwareKeyStore(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IssueRoot creates a self-signed root CA certificate owned by the given
// user.
func (a *Authority) IssueRoot(ctx context.Context, owner request.User, commonName string, validity time.Duration) (request.Certificate, error) {
	keyID, err := a.keys.GenerateKey()
	if err != nil {
		return request.Certificate{}, fmt.Errorf("generating root key: %w", err)
	}
	signer, err := a.keys.Signer(keyID)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("getting root signer: %w", err)
	}

	serial, err := a.certs.NextSerial(ctx)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("reserving serial: %w", err)
	}

	now := a.now().UTC()
	notAfter := now.Add(validity)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	// Self-sign.
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("creating root certificate: %w", err)
	}

	return a.store(ctx, keyID, der, request.Certificate{
		SerialNumber: serial,
		Type:         request.TypeRoot,
		OwnerID:      owner.ID,
		CommonName:   commonName,
		NotBefore:    now,
		ValidTo:      notAfter,
	})
}

// IssueIntermediate creates a CA certificate chained under the issuer
// identified by issuerSerial.
func (a *Authority) IssueIntermediate(ctx context.Context, owner request.User, issuerSerial int64, commonName string, validity time.Duration) (request.Certificate, error) {
	return a.issueChained(ctx, owner, issuerSerial, commonName, validity, request.TypeIntermediate)
}

// IssueEnd creates a leaf certificate chained under the issuer identified
// by issuerSerial.
func (a *Authority) IssueEnd(ctx context.Context, owner request.User, issuerSerial int64, commonName string, validity time.Duration) (request.Certificate, error) {
	return a.issueChained(ctx, owner, issuerSerial, commonName, validity, request.TypeEnd)
}

func (a *Authority) issueChained(ctx context.Context, owner request.User, issuerSerial int64, commonName string, validity time.Duration, certType request.CertificateType) (request.Certificate, error) {
	issuer, err := a.certs.FindBySerial(ctx, issuerSerial)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("loading issuer certificate: %w", err)
	}
	issuerCert, err := ParseCertificatePEM(issuer.CertificatePEM)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("issuer certificate: %w", err)
	}
	issuerKeyID, err := a.keys.ImportPEM(issuer.PrivateKeyPEM)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("importing issuer key: %w", err)
	}
	defer a.keys.Delete(issuerKeyID) //nolint:errcheck
	issuerSigner, err := a.keys.Signer(issuerKeyID)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("getting issuer signer: %w", err)
	}

	keyID, err := a.keys.GenerateKey()
	if err != nil {
		return request.Certificate{}, fmt.Errorf("generating key: %w", err)
	}
	signer, err := a.keys.Signer(keyID)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("getting signer: %w", err)
	}

	serial, err := a.certs.NextSerial(ctx)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("reserving serial: %w", err)
	}

	now := a.now().UTC()
	notAfter := now.Add(validity)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
	}
	switch certType {
	case request.TypeIntermediate:
		template.IsCA = true
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	default:
		template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, issuerCert, signer.Public(), issuerSigner)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("signing %s certificate: %w", certType, err)
	}

	return a.store(ctx, keyID, der, request.Certificate{
		SerialNumber: serial,
		Type:         certType,
		OwnerID:      owner.ID,
		CommonName:   commonName,
		NotBefore:    now,
		ValidTo:      notAfter,
	})
}

// store fills in the PEM material and persists the certificate record.
func (a *Authority) store(ctx context.Context, keyID string, der []byte, cert request.Certificate) (request.Certificate, error) {
	keyPEM, err := a.keys.ExportPEM(keyID)
	if err != nil {
		return request.Certificate{}, fmt.Errorf("exporting private key: %w", err)
	}
	cert.CertificatePEM = EncodeCertificatePEM(der)
	cert.PrivateKeyPEM = keyPEM

	if err := a.certs.Save(ctx, cert); err != nil {
		return request.Certificate{}, fmt.Errorf("storing certificate %d: %w", cert.SerialNumber, err)
	}
	return cert, nil
}

// EncodeCertificatePEM wraps DER certificate bytes in a PEM block.
func EncodeCertificatePEM(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// ParseCertificatePEM decodes a PEM certificate block into an
// x509.Certificate.
func ParseCertificatePEM(certPEM string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return cert, nil
}
