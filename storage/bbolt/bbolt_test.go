package bbolt

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "signet-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("could not create store: %v", err)
	}
	return s, func() {
		s.Close()
		os.Remove(path)
	}
}

func TestBBoltUserDirectory(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	users := s.Users()

	saved, err := users.Save(ctx, request.User{Email: "alice@example.com", Role: request.RoleAdmin})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	t.Run("FindByEmail", func(t *testing.T) {
		got, err := users.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if got != saved {
			t.Errorf("expected %+v, got %+v", saved, got)
		}
	})

	t.Run("FindByID", func(t *testing.T) {
		got, err := users.FindByID(ctx, saved.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Email != "alice@example.com" {
			t.Errorf("expected alice@example.com, got %s", got.Email)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := users.FindByEmail(ctx, "nobody@example.com")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Save(ctx, request.User{Email: "alice@example.com", Role: request.RoleUser})
		if !errors.Is(err, storage.ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("update same user", func(t *testing.T) {
		saved.Role = request.RoleUser
		if _, err := users.Save(ctx, saved); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	})

	t.Run("email change drops old index entry", func(t *testing.T) {
		saved.Email = "alice@corp.example.com"
		if _, err := users.Save(ctx, saved); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if _, err := users.FindByEmail(ctx, "alice@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for old email, got %v", err)
		}
		got, err := users.FindByEmail(ctx, "alice@corp.example.com")
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if got.ID != saved.ID {
			t.Errorf("expected user %d under new email, got %d", saved.ID, got.ID)
		}
	})
}

func TestBBoltCertificateRepository(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	certs := s.Certificates()

	s1, err := certs.NextSerial(ctx)
	if err != nil {
		t.Fatalf("NextSerial failed: %v", err)
	}
	s2, err := certs.NextSerial(ctx)
	if err != nil {
		t.Fatalf("NextSerial failed: %v", err)
	}
	if s2 <= s1 {
		t.Errorf("expected increasing serials, got %d then %d", s1, s2)
	}

	cert := request.Certificate{
		SerialNumber: s1,
		Type:         request.TypeRoot,
		OwnerID:      1,
		CommonName:   "Test Root CA",
		NotBefore:    time.Now().UTC().Truncate(time.Second),
		ValidTo:      time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	if err := certs.Save(ctx, cert); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := certs.FindBySerial(ctx, s1)
	if err != nil {
		t.Fatalf("FindBySerial failed: %v", err)
	}
	if got.CommonName != cert.CommonName || !got.ValidTo.Equal(cert.ValidTo) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := certs.FindBySerial(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBBoltRequestRepository(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()
	requests := s.Requests()

	req, err := requests.Save(ctx, request.CertificateRequest{
		Type:          request.TypeEnd,
		IssuerSerial:  1,
		RequesterID:   2,
		IssuerOwnerID: 3,
		Status:        request.StatusCreated,
		RequestedAt:   time.Now().UTC().Truncate(time.Second),
		Duration:      30 * 24 * time.Hour,
		CommonName:    "service.example.com",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if req.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	t.Run("FindByID", func(t *testing.T) {
		got, err := requests.FindByID(ctx, req.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Duration != req.Duration || got.CommonName != req.CommonName {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})

	t.Run("Transition", func(t *testing.T) {
		accepted, err := requests.Transition(ctx, req.Accepted(), request.StatusCreated)
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if accepted.Status != request.StatusAccepted {
			t.Errorf("expected ACCEPTED, got %s", accepted.Status)
		}

		// A second transition from CREATED must fail: the stored row moved on.
		_, err = requests.Transition(ctx, req.Rejected("late"), request.StatusCreated)
		if !errors.Is(err, storage.ErrStatusConflict) {
			t.Errorf("expected ErrStatusConflict, got %v", err)
		}
	})

	t.Run("Transition missing row", func(t *testing.T) {
		_, err := requests.Transition(ctx, request.CertificateRequest{ID: 777}.Accepted(), request.StatusCreated)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Lists", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if _, err := requests.Save(ctx, request.CertificateRequest{
				Type:          request.TypeEnd,
				IssuerSerial:  1,
				RequesterID:   2,
				IssuerOwnerID: 3,
				Status:        request.StatusCreated,
				CommonName:    "svc.example.com",
			}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		mine, err := requests.ListByRequester(ctx, 2)
		if err != nil {
			t.Fatalf("ListByRequester failed: %v", err)
		}
		if len(mine) != 3 {
			t.Errorf("expected 3 requests, got %d", len(mine))
		}

		pending, err := requests.ListByIssuerOwnerAndStatus(ctx, 3, request.StatusCreated)
		if err != nil {
			t.Fatalf("ListByIssuerOwnerAndStatus failed: %v", err)
		}
		if len(pending) != 2 {
			t.Errorf("expected 2 pending requests, got %d", len(pending))
		}

		all, err := requests.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 requests, got %d", len(all))
		}
	})
}
