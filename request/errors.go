package request

import "errors"

var (
	// ErrPrincipalNotFound is returned when the acting principal cannot be
	// resolved to a user record.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrUnknownCertificateType is returned when the requested certificate
	// type is not ROOT, INTERMEDIATE or END.
	ErrUnknownCertificateType = errors.New("unknown certificate type")

	// ErrInvalidDuration is returned when the requested duration is not a
	// well-formed ISO 8601 duration.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrIssuerNotAllowed is returned when a ROOT request carries an issuer
	// reference. Root certificates are self-signed; the issuer must be absent.
	ErrIssuerNotAllowed = errors.New("root certificates are self-signed; issuer must be absent")

	// ErrRootPermissionDenied is returned when a non-privileged user requests
	// a ROOT certificate.
	ErrRootPermissionDenied = errors.New("no permission to create root certificates")

	// ErrIssuerNotFound is returned when the referenced issuer certificate
	// does not exist.
	ErrIssuerNotFound = errors.New("issuer certificate not found")

	// ErrIssuerIsEndEntity is returned when the referenced issuer is an END
	// certificate, which cannot issue.
	ErrIssuerIsEndEntity = errors.New("cannot issue from an end-entity certificate")

	// ErrDurationExceedsIssuer is returned when the requested validity would
	// end at or after the issuer certificate's expiry.
	ErrDurationExceedsIssuer = errors.New("requested duration exceeds issuer validity")

	// ErrRequestNotFound is returned when the referenced request does not exist.
	ErrRequestNotFound = errors.New("certificate request not found")

	// ErrRequestAlreadyProcessed is returned when accepting or rejecting a
	// request that is no longer in the CREATED state.
	ErrRequestAlreadyProcessed = errors.New("request is already processed")

	// ErrAccessDenied is returned when the acting principal is not the
	// issuer-certificate owner recorded on the request.
	ErrAccessDenied = errors.New("cannot access this request")

	// ErrIssuanceFailed wraps a gateway failure after the request was already
	// persisted as ACCEPTED. The request stays ACCEPTED with no backing
	// certificate; see Engine.accept.
	ErrIssuanceFailed = errors.New("certificate issuance failed")
)
