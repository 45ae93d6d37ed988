package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSessionCorrupt = errors.New("stored session cannot be opened")

// SessionStore persists the backend session between companion restarts.
type SessionStore interface {
	Load() (*Session, error)
	Save(session *Session) error
	Clear() error
}

// FileStore keeps the session in a single file sealed with NaCl secretbox. The key is
// derived from the companion secret, so rotating JWT_SECRET invalidates stored sessions.
type FileStore struct {
	path string
	key  [32]byte
}

func NewFileStore(path, secret string) (*FileStore, error) {
	store := &FileStore{path: path}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("cribb-companion session"))
	if _, err := io.ReadFull(kdf, store.key[:]); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return store, nil
}

func (s *FileStore) Load() (*Session, error) {
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(sealed) < 24 {
		return nil, ErrSessionCorrupt
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, ErrSessionCorrupt
	}

	var session Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return &session, nil
}

func (s *FileStore) Save(session *Session) error {
	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	if err := os.WriteFile(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryStore keeps the session for the life of the process only.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

func (s *MemoryStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.session = &copied
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
