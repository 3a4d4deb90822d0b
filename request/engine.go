package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcleod/signet/storage"
)

// CreateInput is the caller-supplied specification of a new request, as it
// arrives from the transport layer.
type CreateInput struct {
	CertificateType string
	IssuerSerial    int64 // zero means no issuer (ROOT only)
	Duration        string
	CommonName      string
}

// Engine orchestrates the request lifecycle: validation, persistence,
// auto-approval and dispatch to the issuance gateway. It is stateless
// between calls; all durable state lives in the repositories.
type Engine struct {
	users    UserDirectory
	certs    CertificateRepository
	requests RequestRepository
	gateway  IssuanceGateway
	policy   ApprovalPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an Engine over the given collaborators. The default
// approval policy is AutoApprove; override it with WithPolicy.
func NewEngine(users UserDirectory, certs CertificateRepository, requests RequestRepository, gateway IssuanceGateway, opts ...Option) *Engine {
	e := &Engine{
		users:    users,
		certs:    certs,
		requests: requests,
		gateway:  gateway,
		policy:   AutoApprove,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create validates and persists a new certificate request on behalf of the
// principal identified by email. When the approval policy allows it, the
// request is accepted inline and the returned value is already ACCEPTED.
//
// All validation happens before the first write: a failed Create leaves no
// partial state behind.
func (e *Engine) Create(ctx context.Context, in CreateInput, principal string) (CertificateRequest, error) {
	if err := ctx.Err(); err != nil {
		return CertificateRequest{}, err
	}

	user, err := e.resolvePrincipal(ctx, principal)
	if err != nil {
		return CertificateRequest{}, err
	}

	certType, err := ParseCertificateType(in.CertificateType)
	if err != nil {
		return CertificateRequest{}, fmt.Errorf("%w: %q", err, in.CertificateType)
	}

	validity, err := ParseValidity(in.Duration)
	if err != nil {
		return CertificateRequest{}, err
	}

	issuer, err := validateHierarchy(ctx, e.certs, certType, in.IssuerSerial, user)
	if err != nil {
		return CertificateRequest{}, err
	}

	now := e.now()
	if certType != TypeRoot && !validDuration(now, validity, issuer.ValidTo) {
		return CertificateRequest{}, ErrDurationExceedsIssuer
	}

	// No approval chain exists for a ROOT request; the requester stands in
	// as the issuer owner.
	issuerOwnerID := user.ID
	if certType != TypeRoot {
		issuerOwnerID = issuer.OwnerID
	}

	req, err := e.requests.Save(ctx, CertificateRequest{
		Type:          certType,
		IssuerSerial:  in.IssuerSerial,
		RequesterID:   user.ID,
		IssuerOwnerID: issuerOwnerID,
		Status:        StatusCreated,
		RequestedAt:   now,
		Duration:      validity,
		CommonName:    in.CommonName,
	})
	if err != nil {
		return CertificateRequest{}, fmt.Errorf("persisting request: %w", err)
	}

	e.logger.Info("certificate request created",
		"request_id", req.ID,
		"type", string(req.Type),
		"requester_id", req.RequesterID,
		"issuer_serial", req.IssuerSerial)

	if e.policy(user, req) {
		accepted, err := e.accept(ctx, user, req)
		if err != nil {
			return accepted, err
		}
		e.logger.Info("certificate request auto-approved",
			"request_id", accepted.ID, "actor_id", user.ID)
		return accepted, nil
	}
	return req, nil
}

// Accept transitions a CREATED request to ACCEPTED on behalf of the issuer
// owner and invokes the issuance gateway.
func (e *Engine) Accept(ctx context.Context, requestID int64, principal string) (CertificateRequest, error) {
	user, req, err := e.loadForDecision(ctx, requestID, principal)
	if err != nil {
		return CertificateRequest{}, err
	}
	return e.accept(ctx, user, req)
}

// Reject transitions a CREATED request to REJECTED with the given reason on
// behalf of the issuer owner.
func (e *Engine) Reject(ctx context.Context, requestID int64, reason string, principal string) (CertificateRequest, error) {
	user, req, err := e.loadForDecision(ctx, requestID, principal)
	if err != nil {
		return CertificateRequest{}, err
	}

	rejected, err := e.requests.Transition(ctx, req.Rejected(reason), StatusCreated)
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return CertificateRequest{}, ErrRequestAlreadyProcessed
		}
		return CertificateRequest{}, fmt.Errorf("persisting rejection: %w", err)
	}

	e.logger.Info("certificate request rejected",
		"request_id", rejected.ID, "actor_id", user.ID, "reason", reason)
	return rejected, nil
}

// ListForRequester returns every request submitted by the given user.
func (e *Engine) ListForRequester(ctx context.Context, userID int64) ([]CertificateRequest, error) {
	return e.requests.ListByRequester(ctx, userID)
}

// ListPendingForIssuer returns the CREATED requests awaiting a decision by
// the given issuer-certificate owner.
func (e *Engine) ListPendingForIssuer(ctx context.Context, userID int64) ([]CertificateRequest, error) {
	return e.requests.ListByIssuerOwnerAndStatus(ctx, userID, StatusCreated)
}

// ListAll returns every request ever made.
func (e *Engine) ListAll(ctx context.Context) ([]CertificateRequest, error) {
	return e.requests.ListAll(ctx)
}

func (e *Engine) resolvePrincipal(ctx context.Context, principal string) (User, error) {
	user, err := e.users.FindByEmail(ctx, principal)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, fmt.Errorf("%w: %s", ErrPrincipalNotFound, principal)
		}
		return User{}, fmt.Errorf("resolving principal: %w", err)
	}
	return user, nil
}

// loadForDecision performs the shared accept/reject preconditions: the
// request exists, is still CREATED, and the caller is its issuer owner.
func (e *Engine) loadForDecision(ctx context.Context, requestID int64, principal string) (User, CertificateRequest, error) {
	user, err := e.resolvePrincipal(ctx, principal)
	if err != nil {
		return User{}, CertificateRequest{}, err
	}

	req, err := e.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, CertificateRequest{}, ErrRequestNotFound
		}
		return User{}, CertificateRequest{}, fmt.Errorf("loading request: %w", err)
	}
	if req.Status != StatusCreated {
		return User{}, CertificateRequest{}, ErrRequestAlreadyProcessed
	}
	if req.IssuerOwnerID != user.ID {
		return User{}, CertificateRequest{}, ErrAccessDenied
	}
	return user, req, nil
}

// accept is the single accept transition shared by auto-approval and manual
// Accept. The ACCEPTED status is persisted before the gateway is invoked:
// a gateway failure therefore leaves an ACCEPTED request with no backing
// certificate, surfaced as ErrIssuanceFailed wrapping the cause. The
// conditional Transition guarantees only one caller ever reaches the
// gateway for a given request.
func (e *Engine) accept(ctx context.Context, actor User, req CertificateRequest) (CertificateRequest, error) {
	accepted, err := e.requests.Transition(ctx, req.Accepted(), StatusCreated)
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return CertificateRequest{}, ErrRequestAlreadyProcessed
		}
		return CertificateRequest{}, fmt.Errorf("persisting acceptance: %w", err)
	}

	var cert Certificate
	switch accepted.Type {
	case TypeRoot:
		cert, err = e.gateway.IssueRoot(ctx, actor, accepted.CommonName, accepted.Duration)
	case TypeIntermediate:
		cert, err = e.gateway.IssueIntermediate(ctx, actor, accepted.IssuerSerial, accepted.CommonName, accepted.Duration)
	case TypeEnd:
		cert, err = e.gateway.IssueEnd(ctx, actor, accepted.IssuerSerial, accepted.CommonName, accepted.Duration)
	default:
		// Unreachable: ParseCertificateType is the only constructor.
		panic(fmt.Sprintf("request: unhandled certificate type %q", accepted.Type))
	}
	if err != nil {
		e.logger.Error("certificate issuance failed after acceptance",
			"request_id", accepted.ID, "type", string(accepted.Type), "error", err)
		return accepted, fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
	}

	e.logger.Info("certificate issued",
		"request_id", accepted.ID,
		"serial", cert.SerialNumber,
		"type", string(cert.Type),
		"actor_id", actor.ID)
	return accepted, nil
}
