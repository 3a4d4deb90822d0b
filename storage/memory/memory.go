// Package memory provides thread-safe in-memory implementations of the
// request repositories. Suitable for testing, demos, and single-process use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

// UserDirectory is an in-memory request.UserDirectory.
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[int64]request.User
	byEmail map[string]int64
	nextID  int64
}

var _ request.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates an empty in-memory user directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[int64]request.User),
		byEmail: make(map[string]int64),
	}
}

// Save persists a user, assigning an ID when zero, and returns the
// persisted value.
func (d *UserDirectory) Save(_ context.Context, user request.User) (request.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byEmail[user.Email]; ok && id != user.ID {
		return request.User{}, fmt.Errorf("%s: %w", user.Email, storage.ErrDuplicateEmail)
	}
	if user.ID == 0 {
		d.nextID++
		user.ID = d.nextID
	} else if prev, ok := d.byID[user.ID]; ok && prev.Email != user.Email {
		delete(d.byEmail, prev.Email)
	}
	d.byID[user.ID] = user
	d.byEmail[user.Email] = user.ID
	return user, nil
}

func (d *UserDirectory) FindByEmail(_ context.Context, email string) (request.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[email]
	if !ok {
		return request.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return d.byID[id], nil
}

func (d *UserDirectory) FindByID(_ context.Context, id int64) (request.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.byID[id]
	if !ok {
		return request.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return user, nil
}

// CertificateRepository is an in-memory request.CertificateRepository.
type CertificateRepository struct {
	mu         sync.RWMutex
	bySerial   map[int64]request.Certificate
	nextSerial int64
}

var _ request.CertificateRepository = (*CertificateRepository)(nil)

// NewCertificateRepository creates an empty in-memory certificate repository.
func NewCertificateRepository() *CertificateRepository {
	return &CertificateRepository{bySerial: make(map[int64]request.Certificate)}
}

func (r *CertificateRepository) FindBySerial(_ context.Context, serial int64) (request.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, ok := r.bySerial[serial]
	if !ok {
		return request.Certificate{}, fmt.Errorf("certificate %d: %w", serial, storage.ErrNotFound)
	}
	return cert, nil
}

func (r *CertificateRepository) NextSerial(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSerial++
	return r.nextSerial, nil
}

func (r *CertificateRepository) Save(_ context.Context, cert request.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySerial[cert.SerialNumber] = cert
	if cert.SerialNumber > r.nextSerial {
		r.nextSerial = cert.SerialNumber
	}
	return nil
}

// RequestRepository is an in-memory request.RequestRepository.
type RequestRepository struct {
	mu     sync.RWMutex
	byID   map[int64]request.CertificateRequest
	nextID int64
}

var _ request.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository creates an empty in-memory request repository.
func NewRequestRepository() *RequestRepository {
	return &RequestRepository{byID: make(map[int64]request.CertificateRequest)}
}

func (r *RequestRepository) Save(_ context.Context, req request.CertificateRequest) (request.CertificateRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == 0 {
		r.nextID++
		req.ID = r.nextID
	}
	r.byID[req.ID] = req
	return req, nil
}

func (r *RequestRepository) Transition(_ context.Context, req request.CertificateRequest, expect request.RequestStatus) (request.CertificateRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[req.ID]
	if !ok {
		return request.CertificateRequest{}, fmt.Errorf("request %d: %w", req.ID, storage.ErrNotFound)
	}
	if stored.Status != expect {
		return request.CertificateRequest{}, fmt.Errorf("request %d is %s: %w", req.ID, stored.Status, storage.ErrStatusConflict)
	}
	r.byID[req.ID] = req
	return req, nil
}

func (r *RequestRepository) FindByID(_ context.Context, id int64) (request.CertificateRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.byID[id]
	if !ok {
		return request.CertificateRequest{}, fmt.Errorf("request %d: %w", id, storage.ErrNotFound)
	}
	return req, nil
}

func (r *RequestRepository) ListByRequester(_ context.Context, userID int64) ([]request.CertificateRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(req request.CertificateRequest) bool {
		return req.RequesterID == userID
	}), nil
}

func (r *RequestRepository) ListByIssuerOwnerAndStatus(_ context.Context, userID int64, status request.RequestStatus) ([]request.CertificateRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(req request.CertificateRequest) bool {
		return req.IssuerOwnerID == userID && req.Status == status
	}), nil
}

func (r *RequestRepository) ListAll(_ context.Context) ([]request.CertificateRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter(func(request.CertificateRequest) bool { return true }), nil
}

// filter returns matching requests ordered by ID. Callers must hold r.mu.
func (r *RequestRepository) filter(keep func(request.CertificateRequest) bool) []request.CertificateRequest {
	var out []request.CertificateRequest
	for _, req := range r.byID {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
