package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned by TokenStore.Load when no token has been saved yet.
var ErrNoToken = errors.New("no OAuth token found")

const tokenFileMode = 0o600

// TokenStore persists the user's OAuth token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// tokenFile is the on-disk token layout. It is a superset of the
// authorized_user format used by Google's client libraries and of the
// JSON encoding of oauth2.Token, so either kind of file can be read.
type tokenFile struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
	Type         string   `json:"type,omitempty"`

	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

// FileTokenStore keeps the token in a single JSON file.
type FileTokenStore struct {
	path string
	conf *oauth2.Config
}

// NewFileTokenStore returns a store for path. The client fields of conf are
// written alongside the token so the file is self-describing.
func NewFileTokenStore(path string, conf *oauth2.Config) *FileTokenStore {
	return &FileTokenStore{path: path, conf: conf}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Exists reports whether a token file is present.
func (s *FileTokenStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the token file.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return decodeToken(data)
}

// Save writes tok atomically with owner-only permissions.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("cannot save nil token")
	}
	data, err := encodeToken(tok, s.conf)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(tokenFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  f.Token,
		TokenType:    f.TokenType,
		RefreshToken: f.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = f.AccessToken
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("invalid token file: neither access nor refresh token present")
	}
	if f.Expiry != "" {
		expiry, err := parseExpiry(f.Expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid token file: %w", err)
		}
		tok.Expiry = expiry
	}
	return tok, nil
}

// parseExpiry accepts RFC 3339 timestamps with or without a zone. Python
// clients write naive UTC timestamps.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q", s)
	}
	return t.UTC(), nil
}

func encodeToken(tok *oauth2.Token, conf *oauth2.Config) ([]byte, error) {
	f := tokenFile{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Type:         "authorized_user",
	}
	if !tok.Expiry.IsZero() {
		f.Expiry = tok.Expiry.UTC().Format(time.RFC3339Nano)
	}
	if conf != nil {
		f.TokenURI = conf.Endpoint.TokenURL
		f.ClientID = conf.ClientID
		f.ClientSecret = conf.ClientSecret
		f.Scopes = conf.Scopes
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	return append(data, '\n'), nil
}
