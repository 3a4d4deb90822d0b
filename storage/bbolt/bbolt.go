// Package bbolt provides a BBolt-backed implementation of the request
// repositories. A single database file holds users, certificates and
// requests in separate buckets; bucket sequences assign ids and serials.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

var (
	bucketUsers      = []byte("users")
	bucketUserEmails = []byte("user_emails")
	bucketCerts      = []byte("certificates")
	bucketRequests   = []byte("requests")
)

// Store owns the BBolt database and hands out the per-entity repositories.
type Store struct {
	db *bbolt.DB
}

// NewStore returns a Store backed by the given BBolt database, creating the
// buckets if needed.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUserEmails, bucketCerts, bucketRequests} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Users returns the user directory view of the store.
func (s *Store) Users() *UserDirectory {
	return &UserDirectory{db: s.db}
}

// Certificates returns the certificate repository view of the store.
func (s *Store) Certificates() *CertificateRepository {
	return &CertificateRepository{db: s.db}
}

// Requests returns the request repository view of the store.
func (s *Store) Requests() *RequestRepository {
	return &RequestRepository{db: s.db}
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// ---------------------------------------------------------------------------
// UserDirectory
// ---------------------------------------------------------------------------

// UserDirectory implements request.UserDirectory over the users bucket.
type UserDirectory struct {
	db *bbolt.DB
}

var _ request.UserDirectory = (*UserDirectory)(nil)

// Save persists a user, assigning an ID when zero, and maintains the email
// lookup index. Used by server bootstrap to seed principals.
func (d *UserDirectory) Save(_ context.Context, user request.User) (request.User, error) {
	err := d.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if existing := emails.Get([]byte(user.Email)); existing != nil {
			if id := int64(binary.BigEndian.Uint64(existing)); id != user.ID {
				return fmt.Errorf("%s: %w", user.Email, storage.ErrDuplicateEmail)
			}
		}
		users := tx.Bucket(bucketUsers)
		if user.ID == 0 {
			seq, err := users.NextSequence()
			if err != nil {
				return err
			}
			user.ID = int64(seq)
		} else if data := users.Get(itob(user.ID)); data != nil {
			var prev request.User
			if err := json.Unmarshal(data, &prev); err != nil {
				return err
			}
			if prev.Email != user.Email {
				if err := emails.Delete([]byte(prev.Email)); err != nil {
					return err
				}
			}
		}
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		if err := users.Put(itob(user.ID), data); err != nil {
			return err
		}
		return emails.Put([]byte(user.Email), itob(user.ID))
	})
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

func (d *UserDirectory) FindByEmail(_ context.Context, email string) (request.User, error) {
	var user request.User
	err := d.db.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if idBytes == nil {
			return fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
		}
		data := tx.Bucket(bucketUsers).Get(idBytes)
		if data == nil {
			return fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

func (d *UserDirectory) FindByID(_ context.Context, id int64) (request.User, error) {
	var user request.User
	err := d.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get(itob(id))
		if data == nil {
			return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

// ---------------------------------------------------------------------------
// CertificateRepository
// ---------------------------------------------------------------------------

// CertificateRepository implements request.CertificateRepository over the
// certificates bucket. Serial numbers come from the bucket sequence.
type CertificateRepository struct {
	db *bbolt.DB
}

var _ request.CertificateRepository = (*CertificateRepository)(nil)

func (r *CertificateRepository) FindBySerial(_ context.Context, serial int64) (request.Certificate, error) {
	var cert request.Certificate
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCerts).Get(itob(serial))
		if data == nil {
			return fmt.Errorf("certificate %d: %w", serial, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &cert)
	})
	if err != nil {
		return request.Certificate{}, err
	}
	return cert, nil
}

func (r *CertificateRepository) NextSerial(_ context.Context) (int64, error) {
	var serial int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		seq, err := tx.Bucket(bucketCerts).NextSequence()
		if err != nil {
			return err
		}
		serial = int64(seq)
		return nil
	})
	return serial, err
}

func (r *CertificateRepository) Save(_ context.Context, cert request.Certificate) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(cert)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCerts).Put(itob(cert.SerialNumber), data)
	})
}

// ---------------------------------------------------------------------------
// RequestRepository
// ---------------------------------------------------------------------------

// RequestRepository implements request.RequestRepository over the requests
// bucket.
type RequestRepository struct {
	db *bbolt.DB
}

var _ request.RequestRepository = (*RequestRepository)(nil)

func (r *RequestRepository) Save(_ context.Context, req request.CertificateRequest) (request.CertificateRequest, error) {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		if req.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			req.ID = int64(seq)
		}
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.Put(itob(req.ID), data)
	})
	if err != nil {
		return request.CertificateRequest{}, err
	}
	return req, nil
}

// Transition writes the request's new status conditional on the stored row
// still holding the expected prior status. BBolt's single-writer update
// transaction makes the read-check-write atomic.
func (r *RequestRepository) Transition(_ context.Context, req request.CertificateRequest, expect request.RequestStatus) (request.CertificateRequest, error) {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		data := b.Get(itob(req.ID))
		if data == nil {
			return fmt.Errorf("request %d: %w", req.ID, storage.ErrNotFound)
		}
		var stored request.CertificateRequest
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Status != expect {
			return fmt.Errorf("request %d is %s: %w", req.ID, stored.Status, storage.ErrStatusConflict)
		}
		updated, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.Put(itob(req.ID), updated)
	})
	if err != nil {
		return request.CertificateRequest{}, err
	}
	return req, nil
}

func (r *RequestRepository) FindByID(_ context.Context, id int64) (request.CertificateRequest, error) {
	var req request.CertificateRequest
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRequests).Get(itob(id))
		if data == nil {
			return fmt.Errorf("request %d: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &req)
	})
	if err != nil {
		return request.CertificateRequest{}, err
	}
	return req, nil
}

func (r *RequestRepository) ListByRequester(_ context.Context, userID int64) ([]request.CertificateRequest, error) {
	return r.scan(func(req request.CertificateRequest) bool {
		return req.RequesterID == userID
	})
}

func (r *RequestRepository) ListByIssuerOwnerAndStatus(_ context.Context, userID int64, status request.RequestStatus) ([]request.CertificateRequest, error) {
	return r.scan(func(req request.CertificateRequest) bool {
		return req.IssuerOwnerID == userID && req.Status == status
	})
}

func (r *RequestRepository) ListAll(_ context.Context) ([]request.CertificateRequest, error) {
	return r.scan(func(request.CertificateRequest) bool { return true })
}

func (r *RequestRepository) scan(keep func(request.CertificateRequest) bool) ([]request.CertificateRequest, error) {
	var out []request.CertificateRequest
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRequests).ForEach(func(_, v []byte) error {
			var req request.CertificateRequest
			if err := json.Unmarshal(v, &req); err != nil {
				return err
			}
			if keep(req) {
				out = append(out, req)
			}
			return nil
		})
	})
	return out, err
}
