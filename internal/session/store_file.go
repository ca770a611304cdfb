package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/weiliu/h5client/internal/models"
)

const sealedMagic = "h5s1"

const saltSize = 16

// ErrSealedSession indicates the session file is sealed and no passphrase, or
// the wrong one, was supplied.
var ErrSealedSession = errors.New("session file is sealed")

// FileStore persists the session as a JSON document on disk. When a passphrase
// is configured the document is sealed with XChaCha20-Poly1305 under an
// Argon2id-derived key.
type FileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

// NewFileStore returns a FileStore writing to path. An empty passphrase stores
// plain JSON.
func NewFileStore(path, passphrase string) *FileStore {
	store := &FileStore{path: path}
	if passphrase != "" {
		store.passphrase = []byte(passphrase)
	}
	return store
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted session.
func (s *FileStore) Load(_ context.Context) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return models.Session{}, ErrSessionNotFound
	}

	if len(raw) >= len(sealedMagic) && string(raw[:len(sealedMagic)]) == sealedMagic {
		raw, err = s.open(raw[len(sealedMagic):])
		if err != nil {
			return models.Session{}, err
		}
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session file: %w", err)
	}
	if session.IsZero() {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Save atomically replaces the session file.
func (s *FileStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if s.passphrase != nil {
		sealed, err := s.seal(payload)
		if err != nil {
			return err
		}
		payload = append([]byte(sealedMagic), sealed...)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the session file. Clearing an absent file succeeds.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// seal returns salt || nonce || ciphertext.
func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(sealedMagic)), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, error) {
	if s.passphrase == nil {
		return nil, ErrSealedSession
	}
	if len(sealed) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: truncated", ErrSealedSession)
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(deriveKey(s.passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(sealedMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedSession, err)
	}
	return plaintext, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}
