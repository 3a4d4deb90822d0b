package request_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmcleod/signet/request"
)

func TestRequestStatus(t *testing.T) {
	assert.True(t, request.StatusCreated.IsValid())
	assert.True(t, request.StatusAccepted.IsValid())
	assert.True(t, request.StatusRejected.IsValid())
	assert.False(t, request.RequestStatus("PENDING").IsValid())

	assert.False(t, request.StatusCreated.IsTerminal())
	assert.True(t, request.StatusAccepted.IsTerminal())
	assert.True(t, request.StatusRejected.IsTerminal())
}

func TestTransitionsReturnCopies(t *testing.T) {
	orig := request.CertificateRequest{ID: 1, Status: request.StatusCreated}

	accepted := orig.Accepted()
	assert.Equal(t, request.StatusAccepted, accepted.Status)
	assert.Equal(t, request.StatusCreated, orig.Status, "original untouched")

	rejected := orig.Rejected("policy violation")
	assert.Equal(t, request.StatusRejected, rejected.Status)
	assert.Equal(t, "policy violation", rejected.RejectionReason)
	assert.Empty(t, orig.RejectionReason)
}

func TestHasIssuer(t *testing.T) {
	assert.False(t, request.CertificateRequest{}.HasIssuer())
	assert.True(t, request.CertificateRequest{IssuerSerial: 42}.HasIssuer())
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, request.User{Role: request.RoleAdmin}.IsAdmin())
	assert.False(t, request.User{Role: request.RoleUser}.IsAdmin())
	assert.False(t, request.User{}.IsAdmin())
}
