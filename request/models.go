// Package request implements the certificate request lifecycle: submission,
// hierarchy and validity validation, auto-approval, and the manual
// accept/reject workflow. Each request flows through a state machine from
// CREATED to a terminal state (ACCEPTED or REJECTED).
//
// # Request State Machine
//
// Valid state transitions:
//   - CREATED -> ACCEPTED (by issuer owner, or automatically at creation)
//   - CREATED -> REJECTED (by issuer owner)
//
// Terminal states (ACCEPTED, REJECTED) cannot transition.
package request

import (
	"strings"
	"time"
)

// Role defines the privilege level of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "STANDARD_USER"
)

// User is the acting principal resolved by the user directory. The engine
// only reads ID and Role; everything else about identity lives elsewhere.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the user holds the privileged role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CertificateType is the position of a certificate in the chain.
type CertificateType string

const (
	TypeRoot         CertificateType = "ROOT"
	TypeIntermediate CertificateType = "INTERMEDIATE"
	TypeEnd          CertificateType = "END"
)

// ParseCertificateType normalizes (trim + uppercase) and validates a
// certificate type string. It is the only way a CertificateType enters the
// engine, which keeps the gateway dispatch switch exhaustive.
func ParseCertificateType(s string) (CertificateType, error) {
	switch CertificateType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeRoot:
		return TypeRoot, nil
	case TypeIntermediate:
		return TypeIntermediate, nil
	case TypeEnd:
		return TypeEnd, nil
	default:
		return "", ErrUnknownCertificateType
	}
}

// CanIssue reports whether certificates of this type may issue children.
// END certificates are leaves and cannot issue.
func (t CertificateType) CanIssue() bool {
	return t == TypeRoot || t == TypeIntermediate
}

// RequestStatus represents the current state of a certificate request.
type RequestStatus string

const (
	StatusCreated  RequestStatus = "CREATED"
	StatusAccepted RequestStatus = "ACCEPTED"
	StatusRejected RequestStatus = "REJECTED"
)

// IsValid reports whether the RequestStatus is a known value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the status is terminal and cannot transition.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Certificate is an issued certificate as tracked by the certificate
// repository. Certificates are created only by the issuance gateway and are
// immutable afterwards.
type Certificate struct {
	SerialNumber   int64           `json:"serial_number"`
	Type           CertificateType `json:"type"`
	OwnerID        int64           `json:"owner_id"`
	CommonName     string          `json:"common_name"`
	NotBefore      time.Time       `json:"not_before"`
	ValidTo        time.Time       `json:"valid_to"`
	CertificatePEM string          `json:"certificate_pem,omitempty"`
	PrivateKeyPEM  string          `json:"private_key_pem,omitempty"`
}

// CertificateRequest is a request to mint a certificate. It is treated as an
// immutable value: status transitions return a new value which is then
// persisted, so stale in-memory references can never alias a mutation.
type CertificateRequest struct {
	ID int64 `json:"id"`

	Type CertificateType `json:"type"`

	// IssuerSerial references the certificate the new one chains under.
	// Zero only for ROOT requests, which are self-signed.
	IssuerSerial int64 `json:"issuer_serial"`

	// RequesterID is the user who submitted the request.
	RequesterID int64 `json:"requester_id"`

	// IssuerOwnerID is the user who may accept or reject the request: the
	// owner of the issuer certificate. For ROOT requests, where no issuer
	// exists, it is by convention the requester.
	IssuerOwnerID int64 `json:"issuer_owner_id"`

	Status RequestStatus `json:"status"`

	RequestedAt time.Time `json:"requested_at"`

	// Duration is the requested validity period, validated against the
	// issuer's remaining validity once at creation time and never again.
	Duration time.Duration `json:"duration"`

	CommonName string `json:"common_name"`

	// RejectionReason is set only on transition to REJECTED.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// HasIssuer reports whether the request chains under an issuer certificate.
func (r CertificateRequest) HasIssuer() bool {
	return r.IssuerSerial != 0
}

// Accepted returns a copy of the request in the ACCEPTED state.
func (r CertificateRequest) Accepted() CertificateRequest {
	r.Status = StatusAccepted
	return r
}

// Rejected returns a copy of the request in the REJECTED state with the
// given reason recorded.
func (r CertificateRequest) Rejected(reason string) CertificateRequest {
	r.Status = StatusRejected
	r.RejectionReason = reason
	return r
}
