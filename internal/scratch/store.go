// Package scratch is the materialization store. It writes rendered
// documents and attachment bytes to a process-private directory and hands
// back their paths.
//
// The root directory is created lazily as <parent>/mailpipe-<uuid> with
// mode 0700 and removed by Teardown. Writes are atomic: content goes to a
// temporary file in the target directory, is synced and then renamed into
// place, so readers never observe a partially written artifact.
//
// Teardown runs on normal exit and on the signals the server traps. A
// SIGKILL leaves the directory behind; cleanup in that case is best-effort
// and up to the operating system's temp directory policy.
package scratch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrClosed is returned by Put after Teardown.
var ErrClosed = errors.New("scratch store is closed")

// Kind is the artifact category. It names the subdirectory.
type Kind string

const (
	Messages    Kind = "messages"
	Threads     Kind = "threads"
	Searches    Kind = "searches"
	Attachments Kind = "attachments"
)

const (
	dirPrefix = "mailpipe-"
	dirMode   = 0o700
	fileMode  = 0o600
	maxIDLen  = 128
)

// Key identifies an artifact. Equal keys map to the same path.
type Key struct {
	Kind Kind
	ID   string
	// Name is an optional suffix, the original filename for attachments.
	Name string
}

// Artifact is a file written to the store.
type Artifact struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Store is a process-unique scratch directory. It is safe for concurrent use.
type Store struct {
	parent string

	rootOnce sync.Once
	root     string
	rootErr  error

	closed       atomic.Bool
	teardownOnce sync.Once
	teardownErr  error
}

// New returns a Store rooted under parent. An empty parent means os.TempDir().
// Nothing is created until the first Put.
func New(parent string) *Store {
	if parent == "" {
		parent = os.TempDir()
	}
	return &Store{parent: parent}
}

// Root returns the store's directory, creating it on first use.
func (s *Store) Root() (string, error) {
	s.rootOnce.Do(func() {
		if err := os.MkdirAll(s.parent, dirMode); err != nil {
			s.rootErr = fmt.Errorf("failed to create scratch parent: %w", err)
			return
		}
		root := filepath.Join(s.parent, dirPrefix+uuid.NewString())
		if err := os.Mkdir(root, dirMode); err != nil {
			s.rootErr = fmt.Errorf("failed to create scratch root: %w", err)
			return
		}
		s.root = root
	})
	return s.root, s.rootErr
}

// Path returns the final path of key without writing anything.
func (s *Store) Path(key Key) (string, error) {
	if err := key.validate(); err != nil {
		return "", err
	}
	root, err := s.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, string(key.Kind), key.filename()), nil
}

// Put writes data under key, replacing any earlier artifact with the same
// key. If ctx is cancelled before the final rename, nothing is left behind.
func (s *Store) Put(ctx context.Context, key Key, data []byte) (Artifact, error) {
	if s.closed.Load() {
		return Artifact{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	path, err := s.Path(key)
	if err != nil {
		return Artifact{}, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return Artifact{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	err = writeAtomic(ctx, dir, path, data)
	if s.closed.Load() {
		// Teardown ran while we were writing and may have missed our file.
		_ = os.RemoveAll(s.root)
		return Artifact{}, ErrClosed
	}
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{Path: path, Size: int64(len(data)), Kind: key.Kind, ID: key.ID}, nil
}

func writeAtomic(ctx context.Context, dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// Teardown removes the store's directory tree. It runs at most once;
// later calls return the first result. Put fails with ErrClosed afterwards.
func (s *Store) Teardown() error {
	s.teardownOnce.Do(func() {
		s.closed.Store(true)
		// Settle the root so a concurrent first Put cannot create it after removal.
		s.rootOnce.Do(func() { s.rootErr = ErrClosed })
		if s.root == "" {
			return
		}
		if err := os.RemoveAll(s.root); err != nil {
			s.teardownErr = fmt.Errorf("failed to remove scratch root: %w", err)
		}
	})
	return s.teardownErr
}

// SearchID derives a stable id for a search aggregate from the query and
// its result limit.
func SearchID(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(query + "|" + strconv.Itoa(maxResults)))
	return hex.EncodeToString(sum[:])[:16]
}

func (k Key) validate() error {
	switch k.Kind {
	case Messages, Threads, Searches, Attachments:
	default:
		return fmt.Errorf("unknown artifact kind %q", k.Kind)
	}
	if Sanitize(k.ID) == "" {
		return errors.New("artifact id is required")
	}
	return nil
}

func (k Key) filename() string {
	name := shortenID(k.ID)
	if k.Name != "" {
		name += "-" + truncateKeepExt(Sanitize(k.Name), maxIDLen)
	}
	if k.Kind == Attachments {
		return name
	}
	return name + ".md"
}

// shortenID keeps ids longer than maxIDLen distinct by replacing their
// tail with a digest of the full id.
func shortenID(id string) string {
	name := Sanitize(id)
	if len(name) <= maxIDLen {
		return name
	}
	sum := sha256.Sum256([]byte(id))
	suffix := hex.EncodeToString(sum[:])[:16]
	return truncate(name, maxIDLen-len(suffix)-1) + "-" + suffix
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

func truncateKeepExt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	ext := filepath.Ext(s)
	if len(ext) >= n {
		return truncate(s, n)
	}
	return truncate(strings.TrimSuffix(s, ext), n-len(ext)) + ext
}

// Sanitize makes s safe as a single path element. Separators, dot runs
// and control characters are replaced with underscores.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, s)
	s = strings.TrimLeft(s, ".")
	return strings.TrimSpace(s)
}
