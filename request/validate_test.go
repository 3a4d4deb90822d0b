package request_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signet/request"
)

func TestParseCertificateType(t *testing.T) {
	tests := []struct {
		in      string
		want    request.CertificateType
		wantErr bool
	}{
		{in: "ROOT", want: request.TypeRoot},
		{in: "root", want: request.TypeRoot},
		{in: "  Intermediate  ", want: request.TypeIntermediate},
		{in: "end", want: request.TypeEnd},
		{in: "END", want: request.TypeEnd},
		{in: "", wantErr: true},
		{in: "LEAF", wantErr: true},
		{in: "ROOT CA", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := request.ParseCertificateType(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, request.ErrUnknownCertificateType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanIssue(t *testing.T) {
	assert.True(t, request.TypeRoot.CanIssue())
	assert.True(t, request.TypeIntermediate.CanIssue())
	assert.False(t, request.TypeEnd.CanIssue())
}

func TestParseValidity(t *testing.T) {
	t.Run("days", func(t *testing.T) {
		got, err := request.ParseValidity("P30D")
		require.NoError(t, err)
		assert.Equal(t, 30*24*time.Hour, got)
	})

	t.Run("composite", func(t *testing.T) {
		got, err := request.ParseValidity("P1DT12H")
		require.NoError(t, err)
		assert.Equal(t, 36*time.Hour, got)
	})

	t.Run("years resolve to elapsed time", func(t *testing.T) {
		got, err := request.ParseValidity("P1Y")
		require.NoError(t, err)
		assert.Greater(t, got, 364*24*time.Hour)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, in := range []string{"", "thirty days", "30d", "-P1D"} {
			_, err := request.ParseValidity(in)
			assert.ErrorIs(t, err, request.ErrInvalidDuration, "input %q", in)
		}
	})

	t.Run("zero period", func(t *testing.T) {
		_, err := request.ParseValidity("PT0S")
		require.ErrorIs(t, err, request.ErrInvalidDuration)
	})
}

// Durations rendered for clients must parse back to the same elapsed time,
// so the listing output is valid input for a new request.
func TestFormatValidityRoundTrip(t *testing.T) {
	for _, in := range []string{"P30D", "P90D", "P1Y", "PT12H", "P1DT12H"} {
		t.Run(in, func(t *testing.T) {
			v, err := request.ParseValidity(in)
			require.NoError(t, err)

			out := request.FormatValidity(v)
			assert.True(t, strings.HasPrefix(out, "P"), "got %q", out)

			back, err := request.ParseValidity(out)
			require.NoError(t, err)
			assert.Equal(t, v, back)
		})
	}
}

// The requested validity must end strictly before the issuer expires; an
// end time landing exactly on the issuer's expiry is over the line.
func TestDurationBoundAgainstIssuerExpiry(t *testing.T) {
	f := newFixture(t)
	issuer := f.seedIssuer(t, request.TypeIntermediate)
	remaining := issuer.ValidTo.Sub(testNow)

	t.Run("one second inside", func(t *testing.T) {
		in := request.CreateInput{
			CertificateType: "END",
			IssuerSerial:    issuer.SerialNumber,
			Duration:        isoSeconds(remaining - time.Second),
			CommonName:      "service.example.com",
		}
		_, err := f.engine.Create(context.Background(), in, "other@example.com")
		require.NoError(t, err)
	})

	t.Run("exactly at expiry", func(t *testing.T) {
		in := request.CreateInput{
			CertificateType: "END",
			IssuerSerial:    issuer.SerialNumber,
			Duration:        isoSeconds(remaining),
			CommonName:      "service.example.com",
		}
		_, err := f.engine.Create(context.Background(), in, "other@example.com")
		require.ErrorIs(t, err, request.ErrDurationExceedsIssuer)
	})

	t.Run("one second past expiry", func(t *testing.T) {
		in := request.CreateInput{
			CertificateType: "END",
			IssuerSerial:    issuer.SerialNumber,
			Duration:        isoSeconds(remaining + time.Second),
			CommonName:      "service.example.com",
		}
		_, err := f.engine.Create(context.Background(), in, "other@example.com")
		require.ErrorIs(t, err, request.ErrDurationExceedsIssuer)
	})
}

// isoSeconds renders a duration as an ISO 8601 seconds-only period.
func isoSeconds(d time.Duration) string {
	return fmt.Sprintf("PT%dS", int64(d.Seconds()))
}
