// Package postgres implements the request repositories backed by PostgreSQL.
//
// The status transition uses a conditional UPDATE keyed on the prior status,
// which is what guarantees at-most-once acceptance under concurrent
// decisions without any in-process locking.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/signet/request"
	"github.com/jmcleod/signet/storage"
)

// Store owns the connection pool and hands out the per-entity repositories.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Users returns the user directory view of the store.
func (s *Store) Users() *UserDirectory {
	return &UserDirectory{pool: s.pool}
}

// Certificates returns the certificate repository view of the store.
func (s *Store) Certificates() *CertificateRepository {
	return &CertificateRepository{pool: s.pool}
}

// Requests returns the request repository view of the store.
func (s *Store) Requests() *RequestRepository {
	return &RequestRepository{pool: s.pool}
}

// ---------------------------------------------------------------------------
// UserDirectory
// ---------------------------------------------------------------------------

// UserDirectory implements request.UserDirectory over the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

var _ request.UserDirectory = (*UserDirectory)(nil)

// Save persists a user, assigning an ID when zero, and returns the
// persisted value. Inserting an email that already belongs to another user
// fails with storage.ErrDuplicateEmail.
func (d *UserDirectory) Save(ctx context.Context, user request.User) (request.User, error) {
	if user.ID == 0 {
		err := d.pool.QueryRow(ctx,
			`INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id`,
			user.Email, string(user.Role)).Scan(&user.ID)
		if isUniqueViolation(err) {
			return request.User{}, fmt.Errorf("%s: %w", user.Email, storage.ErrDuplicateEmail)
		}
		if err != nil {
			return request.User{}, err
		}
		return user, nil
	}
	_, err := d.pool.Exec(ctx,
		`INSERT INTO users (id, email, role) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET email = $2, role = $3`,
		user.ID, user.Email, string(user.Role))
	if isUniqueViolation(err) {
		return request.User{}, fmt.Errorf("%s: %w", user.Email, storage.ErrDuplicateEmail)
	}
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (request.User, error) {
	var user request.User
	err := d.pool.QueryRow(ctx,
		`SELECT id, email, role FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id int64) (request.User, error) {
	var user request.User
	err := d.pool.QueryRow(ctx,
		`SELECT id, email, role FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Email, &user.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return request.User{}, err
	}
	return user, nil
}

// ---------------------------------------------------------------------------
// CertificateRepository
// ---------------------------------------------------------------------------

// CertificateRepository implements request.CertificateRepository over the
// certificates table. Serial numbers come from a dedicated sequence.
type CertificateRepository struct {
	pool *pgxpool.Pool
}

var _ request.CertificateRepository = (*CertificateRepository)(nil)

func (r *CertificateRepository) FindBySerial(ctx context.Context, serial int64) (request.Certificate, error) {
	var cert request.Certificate
	err := r.pool.QueryRow(ctx,
		`SELECT serial_number, cert_type, owner_id, common_name, not_before, valid_to, certificate_pem, private_key_pem
		 FROM certificates WHERE serial_number = $1`, serial).
		Scan(&cert.SerialNumber, &cert.Type, &cert.OwnerID, &cert.CommonName,
			&cert.NotBefore, &cert.ValidTo, &cert.CertificatePEM, &cert.PrivateKeyPEM)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.Certificate{}, fmt.Errorf("certificate %d: %w", serial, storage.ErrNotFound)
	}
	if err != nil {
		return request.Certificate{}, err
	}
	return cert, nil
}

func (r *CertificateRepository) NextSerial(ctx context.Context) (int64, error) {
	var serial int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('certificate_serials')`).Scan(&serial)
	return serial, err
}

func (r *CertificateRepository) Save(ctx context.Context, cert request.Certificate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO certificates (serial_number, cert_type, owner_id, common_name, not_before, valid_to, certificate_pem, private_key_pem)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cert.SerialNumber, string(cert.Type), cert.OwnerID, cert.CommonName,
		cert.NotBefore, cert.ValidTo, cert.CertificatePEM, cert.PrivateKeyPEM)
	return err
}

// ---------------------------------------------------------------------------
// RequestRepository
// ---------------------------------------------------------------------------

// RequestRepository implements request.RequestRepository over the requests
// table.
type RequestRepository struct {
	pool *pgxpool.Pool
}

var _ request.RequestRepository = (*RequestRepository)(nil)

const requestColumns = `id, cert_type, issuer_serial, requester_id, issuer_owner_id, status, requested_at, duration_ns, common_name, rejection_reason`

func (r *RequestRepository) Save(ctx context.Context, req request.CertificateRequest) (request.CertificateRequest, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO requests (cert_type, issuer_serial, requester_id, issuer_owner_id, status, requested_at, duration_ns, common_name, rejection_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		string(req.Type), req.IssuerSerial, req.RequesterID, req.IssuerOwnerID,
		string(req.Status), req.RequestedAt, int64(req.Duration), req.CommonName, req.RejectionReason).
		Scan(&req.ID)
	if err != nil {
		return request.CertificateRequest{}, err
	}
	return req, nil
}

// Transition performs the conditional status update. A zero-row result is
// disambiguated into ErrNotFound or ErrStatusConflict with a follow-up read.
func (r *RequestRepository) Transition(ctx context.Context, req request.CertificateRequest, expect request.RequestStatus) (request.CertificateRequest, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE requests SET status = $2, rejection_reason = $3
		 WHERE id = $1 AND status = $4`,
		req.ID, string(req.Status), req.RejectionReason, string(expect))
	if err != nil {
		return request.CertificateRequest{}, err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx,
			`SELECT status FROM requests WHERE id = $1`, req.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return request.CertificateRequest{}, fmt.Errorf("request %d: %w", req.ID, storage.ErrNotFound)
		}
		if err != nil {
			return request.CertificateRequest{}, err
		}
		return request.CertificateRequest{}, fmt.Errorf("request %d is %s: %w", req.ID, current, storage.ErrStatusConflict)
	}
	return req, nil
}

func (r *RequestRepository) FindByID(ctx context.Context, id int64) (request.CertificateRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return request.CertificateRequest{}, fmt.Errorf("request %d: %w", id, storage.ErrNotFound)
	}
	return req, err
}

func (r *RequestRepository) ListByRequester(ctx context.Context, userID int64) ([]request.CertificateRequest, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE requester_id = $1 ORDER BY id`, userID)
}

func (r *RequestRepository) ListByIssuerOwnerAndStatus(ctx context.Context, userID int64, status request.RequestStatus) ([]request.CertificateRequest, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE issuer_owner_id = $1 AND status = $2 ORDER BY id`,
		userID, string(status))
}

func (r *RequestRepository) ListAll(ctx context.Context) ([]request.CertificateRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY id`)
}

func (r *RequestRepository) list(ctx context.Context, sql string, args ...any) ([]request.CertificateRequest, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []request.CertificateRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (request.CertificateRequest, error) {
	var req request.CertificateRequest
	var durationNS int64
	err := row.Scan(&req.ID, &req.Type, &req.IssuerSerial, &req.RequesterID,
		&req.IssuerOwnerID, &req.Status, &req.RequestedAt, &durationNS,
		&req.CommonName, &req.RejectionReason)
	if err != nil {
		return request.CertificateRequest{}, err
	}
	req.Duration = time.Duration(durationNS)
	return req, nil
}
