package request

import (
	"context"
	"time"
)

// UserDirectory resolves acting principals to user records. Lookups return
// storage.ErrNotFound when no user matches.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

// CertificateRepository stores issued certificates.
type CertificateRepository interface {
	FindBySerial(ctx context.Context, serial int64) (Certificate, error)

	// NextSerial reserves and returns the next certificate serial number.
	NextSerial(ctx context.Context) (int64, error)

	Save(ctx context.Context, cert Certificate) error
}

// RequestRepository stores certificate requests. Requests are never deleted;
// terminal rows are retained as an audit trail.
type RequestRepository interface {
	// Save persists a new request, assigning its ID, and returns the
	// persisted value.
	Save(ctx context.Context, req CertificateRequest) (CertificateRequest, error)

	// Transition persists a status change conditional on the stored request
	// still being in the expected prior status. It returns
	// storage.ErrStatusConflict when another writer got there first, which
	// is what guarantees at-most-once issuance per request.
	Transition(ctx context.Context, req CertificateRequest, expect RequestStatus) (CertificateRequest, error)

	FindByID(ctx context.Context, id int64) (CertificateRequest, error)
	ListByRequester(ctx context.Context, userID int64) ([]CertificateRequest, error)
	ListByIssuerOwnerAndStatus(ctx context.Context, userID int64, status RequestStatus) ([]CertificateRequest, error)
	ListAll(ctx context.Context) ([]CertificateRequest, error)
}

// IssuanceGateway mints certificates once a request is accepted. Errors are
// propagated unmodified, wrapped in ErrIssuanceFailed by the engine.
type IssuanceGateway interface {
	IssueRoot(ctx context.Context, owner User, commonName string, validity time.Duration) (Certificate, error)
	IssueIntermediate(ctx context.Context, owner User, issuerSerial int64, commonName string, validity time.Duration) (Certificate, error)
	IssueEnd(ctx context.Context, owner User, issuerSerial int64, commonName string, validity time.Duration) (Certificate, error)
}
