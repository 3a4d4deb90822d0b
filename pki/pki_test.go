package pki_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signet/pki"
	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage/memory"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func newTestAuthority(t *testing.T) (*pki.Authority, request.CertificateRepository) {
	t.Helper()
	certs := memory.NewCertificateRepository()
	return pki.NewAuthority(certs, pki.WithClock(testClock)), certs
}

func TestIssueRoot(t *testing.T) {
	authority, certs := newTestAuthority(t)
	owner := request.User{ID: 7, Email: "ca-admin@example.com", Role: request.RoleAdmin}

	cert, err := authority.IssueRoot(context.Background(), owner, "Example Root CA", 10*365*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, request.TypeRoot, cert.Type)
	assert.Equal(t, int64(7), cert.OwnerID)
	assert.Equal(t, "Example Root CA", cert.CommonName)
	assert.Equal(t, testClock(), cert.NotBefore)
	assert.Equal(t, testClock().Add(10*365*24*time.Hour), cert.ValidTo)
	assert.NotEmpty(t, cert.PrivateKeyPEM)

	parsed, err := pki.ParseCertificatePEM(cert.CertificatePEM)
	require.NoError(t, err)
	assert.True(t, parsed.IsCA)
	assert.Equal(t, cert.SerialNumber, parsed.SerialNumber.Int64())
	assert.Equal(t, "Example Root CA", parsed.Subject.CommonName)
	assert.Equal(t, "Example Root CA", parsed.Issuer.CommonName)
	require.NoError(t, parsed.CheckSignatureFrom(parsed))

	// The record must also have been persisted.
	stored, err := certs.FindBySerial(context.Background(), cert.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, cert, stored)
}

func TestIssueIntermediateChainsUnderRoot(t *testing.T) {
	authority, _ := newTestAuthority(t)
	owner := request.User{ID: 1, Email: "ops@example.com", Role: request.RoleAdmin}

	root, err := authority.IssueRoot(context.Background(), owner, "Example Root CA", 10*365*24*time.Hour)
	require.NoError(t, err)

	inter, err := authority.IssueIntermediate(context.Background(), owner, root.SerialNumber, "Example Issuing CA", 5*365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, request.TypeIntermediate, inter.Type)
	assert.NotEqual(t, root.SerialNumber, inter.SerialNumber)

	rootCert, err := pki.ParseCertificatePEM(root.CertificatePEM)
	require.NoError(t, err)
	interCert, err := pki.ParseCertificatePEM(inter.CertificatePEM)
	require.NoError(t, err)

	assert.True(t, interCert.IsCA)
	assert.Equal(t, "Example Root CA", interCert.Issuer.CommonName)
	require.NoError(t, interCert.CheckSignatureFrom(rootCert))

	// The intermediate must carry its own key, not the root's.
	assert.NotEqual(t, root.PrivateKeyPEM, inter.PrivateKeyPEM)
	require.NotEqual(t,
		rootCert.PublicKey.(*ecdsa.PublicKey).X,
		interCert.PublicKey.(*ecdsa.PublicKey).X)
}

func TestIssueEndVerifiesAgainstChain(t *testing.T) {
	authority, _ := newTestAuthority(t)
	owner := request.User{ID: 1, Email: "ops@example.com", Role: request.RoleAdmin}

	root, err := authority.IssueRoot(context.Background(), owner, "Example Root CA", 10*365*24*time.Hour)
	require.NoError(t, err)
	inter, err := authority.IssueIntermediate(context.Background(), owner, root.SerialNumber, "Example Issuing CA", 5*365*24*time.Hour)
	require.NoError(t, err)
	leaf, err := authority.IssueEnd(context.Background(), owner, inter.SerialNumber, "service.example.com", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, request.TypeEnd, leaf.Type)

	rootCert, err := pki.ParseCertificatePEM(root.CertificatePEM)
	require.NoError(t, err)
	interCert, err := pki.ParseCertificatePEM(inter.CertificatePEM)
	require.NoError(t, err)
	leafCert, err := pki.ParseCertificatePEM(leaf.CertificatePEM)
	require.NoError(t, err)

	assert.False(t, leafCert.IsCA)
	assert.Equal(t, "Example Issuing CA", leafCert.Issuer.CommonName)

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)
	inters := x509.NewCertPool()
	inters.AddCert(interCert)
	_, err = leafCert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: inters,
		CurrentTime:   testClock().Add(time.Hour),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err)
}

func TestIssueChainedMissingIssuer(t *testing.T) {
	authority, _ := newTestAuthority(t)
	owner := request.User{ID: 1, Email: "ops@example.com", Role: request.RoleAdmin}

	_, err := authority.IssueEnd(context.Background(), owner, 42, "service.example.com", 24*time.Hour)
	require.Error(t, err)
}

func TestSoftwareKeyStoreRoundTrip(t *testing.T) {
	ks := pki.NewSoftwareKeyStore()

	keyID, err := ks.GenerateKey()
	require.NoError(t, err)

	pemData, err := ks.ExportPEM(keyID)
	require.NoError(t, err)
	assert.Contains(t, pemData, "EC PRIVATE KEY")

	importedID, err := ks.ImportPEM(pemData)
	require.NoError(t, err)

	orig, err := ks.Signer(keyID)
	require.NoError(t, err)
	imported, err := ks.Signer(importedID)
	require.NoError(t, err)
	assert.Equal(t, orig.Public(), imported.Public())

	require.NoError(t, ks.Delete(keyID))
	_, err = ks.Signer(keyID)
	require.ErrorIs(t, err, pki.ErrKeyNotFound)
}

func TestSoftwareKeyStoreRejectsGarbagePEM(t *testing.T) {
	ks := pki.NewSoftwareKeyStore()
	_, err := ks.ImportPEM("not a key")
	require.ErrorIs(t, err, pki.ErrInvalidPEM)
}
