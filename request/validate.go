package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sosodev/duration"

	"github.com/jmcleod/signet/storage"
)

// ParseValidity parses an ISO 8601 duration string such as "P30D" or
// "P1Y6M" into an elapsed-time quantity. Month and year designators are
// resolved with the parser's calendar approximation.
func ParseValidity(s string) (time.Duration, error) {
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	v := d.ToTimeDuration()
	if v <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive period", ErrInvalidDuration, s)
	}
	return v, nil
}

// FormatValidity renders an elapsed-time quantity as an ISO 8601 duration
// string, the inverse of ParseValidity under the same calendar approximation.
func FormatValidity(v time.Duration) string {
	return duration.FromTimeDuration(v).String()
}

// validateHierarchy enforces the certificate-type, issuer and ownership rules
// for a new request before anything is persisted. For non-ROOT requests it
// returns the resolved issuer certificate.
func validateHierarchy(ctx context.Context, certs CertificateRepository, requestedType CertificateType, issuerSerial int64, requester User) (Certificate, error) {
	if requestedType == TypeRoot {
		if issuerSerial != 0 {
			return Certificate{}, ErrIssuerNotAllowed
		}
		if !requester.IsAdmin() {
			return Certificate{}, ErrRootPermissionDenied
		}
		return Certificate{}, nil
	}

	issuer, err := certs.FindBySerial(ctx, issuerSerial)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Certificate{}, ErrIssuerNotFound
		}
		return Certificate{}, fmt.Errorf("looking up issuer certificate: %w", err)
	}
	if !issuer.Type.CanIssue() {
		return Certificate{}, ErrIssuerIsEndEntity
	}
	return issuer, nil
}

// validDuration reports whether a certificate created now with the requested
// validity would expire strictly before the issuer does. An end time equal
// to the issuer's expiry is invalid.
func validDuration(now time.Time, validity time.Duration, issuerValidTo time.Time) bool {
	return now.Add(validity).Before(issuerValidTo)
}
