package request

// ApprovalPolicy decides, once, at creation time, whether a newly persisted
// request is immediately accepted without manual review.
type ApprovalPolicy func(actor User, req CertificateRequest) bool

// AutoApprove is the default policy:
//
//   - admins are auto-approved for every certificate type
//   - the owner of the issuer certificate requesting a child under it is
//     self-approving
//   - everyone else waits for a manual decision by the issuer owner
func AutoApprove(actor User, req CertificateRequest) bool {
	if actor.IsAdmin() {
		return true
	}
	if req.Type == TypeRoot {
		return false
	}
	return actor.ID == req.IssuerOwnerID
}
