package api

import (
	"time"

	"github.com/jmcleod/signet/request"
)

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// RegisterResponse is returned from POST /auth/register. The token is shown
// exactly once; only its hash is retained server-side.
type RegisterResponse struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Token  string `json:"token"`
}

// CreateRequestRequest is the JSON body for POST /requests.
type CreateRequestRequest struct {
	CertificateType string `json:"certificate_type"`
	IssuerSerial    int64  `json:"issuer_serial,omitempty"`
	Duration        string `json:"duration"`
	CommonName      string `json:"common_name"`
}

// RejectRequestRequest is the JSON body for POST /requests/{requestID}/reject.
type RejectRequestRequest struct {
	Reason string `json:"reason"`
}

// RequestView is the wire representation of a certificate request.
type RequestView struct {
	ID              int64     `json:"id"`
	CertificateType string    `json:"certificate_type"`
	IssuerSerial    int64     `json:"issuer_serial,omitempty"`
	RequesterID     int64     `json:"requester_id"`
	IssuerOwnerID   int64     `json:"issuer_owner_id"`
	Status          string    `json:"status"`
	RequestedAt     time.Time `json:"requested_at"`
	Duration        string    `json:"duration"`
	CommonName      string    `json:"common_name"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

func viewOf(req request.CertificateRequest) RequestView {
	return RequestView{
		ID:              req.ID,
		CertificateType: string(req.Type),
		IssuerSerial:    req.IssuerSerial,
		RequesterID:     req.RequesterID,
		IssuerOwnerID:   req.IssuerOwnerID,
		Status:          string(req.Status),
		RequestedAt:     req.RequestedAt,
		Duration:        request.FormatValidity(req.Duration),
		CommonName:      req.CommonName,
		RejectionReason: req.RejectionReason,
	}
}

// ListRequestsResponse is returned from the request listing endpoints.
type ListRequestsResponse struct {
	Requests []RequestView `json:"requests"`
}

func viewsOf(reqs []request.CertificateRequest) ListRequestsResponse {
	out := ListRequestsResponse{Requests: make([]RequestView, 0, len(reqs))}
	for _, req := range reqs {
		out.Requests = append(out.Requests, viewOf(req))
	}
	return out
}

// CertificateView is the wire representation of an issued certificate. The
// private key never leaves the server.
type CertificateView struct {
	SerialNumber   int64     `json:"serial_number"`
	Type           string    `json:"type"`
	OwnerID        int64     `json:"owner_id"`
	CommonName     string    `json:"common_name"`
	NotBefore      time.Time `json:"not_before"`
	ValidTo        time.Time `json:"valid_to"`
	CertificatePEM string    `json:"certificate_pem,omitempty"`
}

func certViewOf(cert request.Certificate) CertificateView {
	return CertificateView{
		SerialNumber:   cert.SerialNumber,
		Type:           string(cert.Type),
		OwnerID:        cert.OwnerID,
		CommonName:     cert.CommonName,
		NotBefore:      cert.NotBefore,
		ValidTo:        cert.ValidTo,
		CertificatePEM: cert.CertificatePEM,
	}
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
