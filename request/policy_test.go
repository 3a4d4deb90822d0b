package request_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmcleod/signet/request"
)

func TestAutoApprove(t *testing.T) {
	admin := request.User{ID: 1, Role: request.RoleAdmin}
	owner := request.User{ID: 2, Role: request.RoleUser}
	other := request.User{ID: 3, Role: request.RoleUser}

	endReq := request.CertificateRequest{Type: request.TypeEnd, IssuerOwnerID: owner.ID}
	rootReq := request.CertificateRequest{Type: request.TypeRoot, IssuerOwnerID: other.ID}

	assert.True(t, request.AutoApprove(admin, endReq), "admins approve everything")
	assert.True(t, request.AutoApprove(admin, rootReq), "admins approve root requests")
	assert.True(t, request.AutoApprove(owner, endReq), "issuer owner is self-approving")
	assert.False(t, request.AutoApprove(other, endReq), "strangers wait for review")
	assert.False(t, request.AutoApprove(other, rootReq), "root never auto-approves for standard users")
}
