// Package file keeps client state in a single JSON document on disk,
// optionally sealed with a passphrase-derived key.
package file

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/hongminglow/aratiri-client/internal/storage"
)

var (
	// ErrLocked is returned when the file is sealed and no passphrase was configured.
	ErrLocked = errors.New("state file is encrypted; a passphrase is required")
	// ErrDecrypt is returned when the passphrase does not open the sealed file.
	ErrDecrypt = errors.New("state file could not be decrypted")
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// Ensure Store satisfies the storage.KV interface at compile time.
var _ storage.KV = (*Store)(nil)

type sealedDocument struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Sealed  []byte `json:"sealed"`
}

// Store is a file-backed KV. Every write rewrites the whole document through a
// temp file and rename, so readers never see a half-written token pair.
type Store struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
	salt       []byte
	key        *[keySize]byte
	values     map[string]string
}

// Open loads path, creating nothing until the first write. An empty passphrase
// stores plain JSON.
func Open(path, passphrase string) (*Store, error) {
	s := &Store{
		path:       path,
		passphrase: []byte(passphrase),
		values:     make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var doc sealedDocument
	if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Sealed) > 0 {
		if len(s.passphrase) == 0 {
			return ErrLocked
		}
		plain, err := s.open(doc)
		if err != nil {
			return err
		}
		raw = plain
	}

	if err := json.Unmarshal(raw, &s.values); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return nil
}

func (s *Store) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(s.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}

func (s *Store) open(doc sealedDocument) ([]byte, error) {
	if len(doc.Sealed) < nonceSize {
		return nil, ErrDecrypt
	}
	key, err := s.deriveKey(doc.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], doc.Sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, doc.Sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	s.salt = doc.Salt
	s.key = key
	return plain, nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	if s.key == nil {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		key, err := s.deriveKey(salt)
		if err != nil {
			return nil, err
		}
		s.salt, s.key = salt, key
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, s.key)
	return json.Marshal(sealedDocument{Version: 1, Salt: s.salt, Sealed: sealed})
}

// persist writes next to disk and only then swaps it in as the live map.
func (s *Store) persist(next map[string]string) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if len(s.passphrase) > 0 {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	s.values = next
	return nil
}

func (s *Store) snapshot() map[string]string {
	next := make(map[string]string, len(s.values))
	for k, v := range s.values {
		next[k] = v
	}
	return next
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// SetMany writes all pairs in a single file replacement.
func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	for k, v := range values {
		next[k] = v
	}
	return s.persist(next)
}

// Delete removes keys in a single file replacement.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	for _, k := range keys {
		delete(next, k)
	}
	return s.persist(next)
}

// Close is a no-op; every write is already on disk.
func (s *Store) Close() error { return nil }
