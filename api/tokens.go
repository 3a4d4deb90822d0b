package api

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jmcleod/signet/internal/util"
)

// tokenStore issues and verifies bearer tokens. A token is "<id>.<secret>":
// the id locates the record, the secret is compared against an Argon2id
// hash. Raw secrets are never stored.
type tokenStore struct {
	mu     sync.RWMutex
	byID   map[string]tokenRecord
	params util.Argon2idParams
}

type tokenRecord struct {
	email string
	salt  []byte
	hash  []byte
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		byID:   make(map[string]tokenRecord),
		params: util.DefaultArgon2idParams(),
	}
}

// Issue mints a bearer token bound to the given principal email and returns
// it. Only the hash is retained.
func (s *tokenStore) Issue(email string) (string, error) {
	id := uuid.NewString()

	secretBytes, err := util.RandomBytes(32)
	if err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	util.WipeBytes(secretBytes)

	salt, err := util.RandomBytes(16)
	if err != nil {
		return "", fmt.Errorf("generating token salt: %w", err)
	}
	hash, err := util.DeriveArgon2idKey(secret, salt, s.params)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.byID[id] = tokenRecord{email: email, salt: salt, hash: hash}
	s.mu.Unlock()

	return id + "." + secret, nil
}

// Verify checks a presented token and returns the principal email it is
// bound to.
func (s *tokenStore) Verify(token string) (string, bool) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", false
	}

	s.mu.RLock()
	record, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	match, err := util.CompareArgon2idKey(secret, record.salt, s.params, record.hash)
	if err != nil || !match {
		return "", false
	}
	return record.email, true
}

// Revoke invalidates a token by id. Unknown ids are a no-op.
func (s *tokenStore) Revoke(token string) {
	id, _, _ := strings.Cut(token, ".")
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}
