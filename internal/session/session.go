// Package session holds the bearer token and user of the signed-in account.
//
// The session is loaded from a persistent key-value store at startup, replaced by
// login, and cleared by logout or by a credential-expiry response from the API.
package session

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Keys under which the session is persisted.
const (
	TokenKey = "geotask:token"
	UserKey  = "geotask:user"
)

// ErrNoSession is returned by Token when nobody is signed in.
var ErrNoSession = errors.New("not logged in")

// KV is a persistent key-value store scoped to one installation.
type KV interface {
	// Get returns the value for key; ok is false when the key is not set.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key.
	Set(key, value string) error

	// Remove deletes keys. Missing keys are not an error.
	Remove(keys ...string) error
}

// Session is a bearer token and the email it was issued for.
type Session struct {
	Token string
	Email string
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// Store owns the current Session and keeps it in sync with a KV.
// It implements oauth2.TokenSource.
type Store struct {
	mu  sync.RWMutex
	kv  KV
	cur Session
}

// NewStore creates a Store backed by kv. Call Load to read the persisted session.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted session into memory.
func (s *Store) Load() (Session, error) {
	token, _, err := s.kv.Get(TokenKey)
	if err != nil {
		return Session{}, fmt.Errorf("read session token: %w", err)
	}
	email, _, err := s.kv.Get(UserKey)
	if err != nil {
		return Session{}, fmt.Errorf("read session user: %w", err)
	}

	s.mu.Lock()
	s.cur = Session{Token: token, Email: email}
	s.mu.Unlock()
	return s.Current(), nil
}

// Current returns the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save persists sess and makes it current.
func (s *Store) Save(sess Session) error {
	if err := s.kv.Set(TokenKey, sess.Token); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	if err := s.kv.Set(UserKey, sess.Email); err != nil {
		return fmt.Errorf("save session user: %w", err)
	}
	s.mu.Lock()
	s.cur = sess
	s.mu.Unlock()
	return nil
}

// Clear forgets the current session, in memory and on disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cur = Session{}
	s.mu.Unlock()
	if err := s.kv.Remove(TokenKey, UserKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	cur := s.Current()
	if !cur.Valid() {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: cur.Token, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*Store)(nil)
