// Package identity keeps the per-installation user identifier that the
// backend uses to scope conversations and documents.
package identity

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	idPrefix     = "user_"
	suffixLength = 9
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Store persists the user identifier in a single file.
type Store struct {
	path  string
	clock clockwork.Clock

	mu sync.Mutex
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/docchat/user-id, or ~/.docchat/user-id
// when no config dir can be determined.
func DefaultPath() (string, error) {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "docchat", "user-id"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, ".docchat", "user-id"), nil
}

func NewStore(path string, options ...Option) *Store {
	ret := &Store{
		path:  path,
		clock: clockwork.NewRealClock(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *Store) Path() string {
	return s.path
}

// LoadOrCreate returns the stored identifier, generating and persisting a new
// one on first use.
func (s *Store) LoadOrCreate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err == nil {
		id := strings.TrimSpace(string(b))
		if id != "" {
			return id, nil
		}
		log.Warn().Str("path", s.path).Msg("Identity file is empty, generating a new user id")
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "could not read identity file %s", s.path)
	}

	id, err := s.generate()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return "", errors.Wrap(err, "could not create identity directory")
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return "", errors.Wrapf(err, "could not write identity file %s", s.path)
	}

	log.Debug().Str("path", s.path).Str("user_id", id).Msg("Created user id")
	return id, nil
}

// generate builds user_<unix millis>_<9 random base36 chars>.
func (s *Store) generate() (string, error) {
	var sb strings.Builder
	sb.WriteString(idPrefix)
	sb.WriteString(strconv.FormatInt(s.clock.Now().UnixMilli(), 10))
	sb.WriteByte('_')

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "could not generate user id")
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// IsValid reports whether id looks like an identifier this package generates.
func IsValid(id string) bool {
	if !strings.HasPrefix(id, idPrefix) {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(id, idPrefix), "_")
	if len(parts) != 2 {
		return false
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return false
	}
	if len(parts[1]) != suffixLength {
		return false
	}
	for _, c := range parts[1] {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
