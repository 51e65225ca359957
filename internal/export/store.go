// Package export holds the CSV documents of rows a bulk ingest did not reach,
// keyed by single-use download tokens.
package export

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/collection-ingest/internal/metrics"
)

// ErrNotFound is returned for unknown or already consumed tokens.
var ErrNotFound = errors.New("export not found")

// TokenGenerator produces unguessable tokens.
type TokenGenerator interface {
	NewV4ID() (string, error)
}

// Store is an in-process, single-read token→CSV map. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]string
	tokens  TokenGenerator
	// report receives the entry count after every Put and Take.
	report func(n int)
}

// NewStore builds an empty Store.
func NewStore(tokens TokenGenerator) *Store {
	return &Store{
		entries: make(map[string]string),
		tokens:  tokens,
		report:  metrics.SetExportEntries,
	}
}

// Put stores csvText under a fresh token.
func (s *Store) Put(csvText string) (string, error) {
	for {
		token, err := s.tokens.NewV4ID()
		if err != nil {
			return "", fmt.Errorf("generate export token: %w", err)
		}
		s.mu.Lock()
		if _, taken := s.entries[token]; taken {
			s.mu.Unlock()
			continue
		}
		s.entries[token] = csvText
		s.report(len(s.entries))
		s.mu.Unlock()
		return token, nil
	}
}

// Take returns the CSV stored under token and removes it.
func (s *Store) Take(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	csvText, ok := s.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, token)
	s.report(len(s.entries))
	return csvText, nil
}

// Len returns the number of pending exports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
