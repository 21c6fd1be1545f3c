package scratch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()

	key := Key{Kind: Messages, ID: "18c2f0a9b1d3e4f5"}
	first, err := s.Put(context.Background(), key, []byte("# Email: hi"))
	require.NoError(t, err)
	second, err := s.Put(context.Background(), key, []byte("# Email: hi"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "18c2f0a9b1d3e4f5.md", filepath.Base(first.Path))
	assert.Equal(t, "messages", filepath.Base(filepath.Dir(first.Path)))

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "# Email: hi", string(data))
	assert.Equal(t, int64(len(data)), first.Size)
}

func TestStore_RootLayout(t *testing.T) {
	parent := t.TempDir()
	s := New(parent)
	defer s.Teardown()

	root, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, parent, filepath.Dir(root))
	assert.True(t, strings.HasPrefix(filepath.Base(root), "mailpipe-"))

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	other := New(parent)
	defer other.Teardown()
	otherRoot, err := other.Root()
	require.NoError(t, err)
	assert.NotEqual(t, root, otherRoot)
}

func TestStore_AttachmentKeepsBytesAndName(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()

	payload := bytes.Repeat([]byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}, 1000)
	art, err := s.Put(context.Background(), Key{Kind: Attachments, ID: "m1-2", Name: "report.pdf"}, payload)
	require.NoError(t, err)

	assert.Equal(t, "m1-2-report.pdf", filepath.Base(art.Path))
	got, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestStore_TeardownRemovesEverything(t *testing.T) {
	parent := t.TempDir()
	s := New(parent)

	for i := range 5 {
		_, err := s.Put(context.Background(), Key{Kind: Threads, ID: fmt.Sprintf("t%d", i)}, []byte("x"))
		require.NoError(t, err)
	}

	require.NoError(t, s.Teardown())
	require.NoError(t, s.Teardown())

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Put(context.Background(), Key{Kind: Threads, ID: "late"}, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_TeardownBeforeUse(t *testing.T) {
	parent := t.TempDir()
	s := New(parent)

	require.NoError(t, s.Teardown())

	_, err := s.Put(context.Background(), Key{Kind: Messages, ID: "m1"}, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ConcurrentPutsSameKey(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()

	key := Key{Kind: Searches, ID: SearchID("from:alice", 10)}
	contents := make([][]byte, 16)
	for i := range contents {
		contents[i] = bytes.Repeat([]byte{byte('a' + i)}, 64<<10)
	}

	var wg sync.WaitGroup
	for _, c := range contents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(context.Background(), key, c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	path, err := s.Path(key)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)

	found := false
	for _, c := range contents {
		if bytes.Equal(got, c) {
			found = true
		}
	}
	assert.True(t, found, "final content is not one of the written versions")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")
}

func TestStore_CancelledPutLeavesNothing(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := Key{Kind: Messages, ID: "m1"}
	_, err := s.Put(ctx, key, []byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))

	path, err := s.Path(key)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Empty(t, entries)
}

func TestKey_Validation(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()

	_, err := s.Put(context.Background(), Key{Kind: "bogus", ID: "x"}, nil)
	assert.Error(t, err)

	_, err = s.Put(context.Background(), Key{Kind: Messages, ID: "."}, nil)
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"normal filename", "document.pdf", "document.pdf"},
		{"forward slash", "path/to/document.pdf", "path_to_document.pdf"},
		{"backslash", "path\\to\\document.pdf", "path_to_document.pdf"},
		{"parent directory", "../../../etc/passwd", "______etc_passwd"},
		{"control characters", "a\x00b\nc", "a_b_c"},
		{"leading dot", ".hidden", "hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSearchID(t *testing.T) {
	a := SearchID("from:alice", 10)
	assert.Len(t, a, 16)
	assert.Equal(t, a, SearchID("from:alice", 10))
	assert.NotEqual(t, a, SearchID("from:alice", 11))
	assert.NotEqual(t, a, SearchID("from:bob", 10))
}

func TestFilename_Truncation(t *testing.T) {
	long := strings.Repeat("n", 300) + ".pdf"
	name := Key{Kind: Attachments, ID: strings.Repeat("i", 300), Name: long}.filename()

	assert.LessOrEqual(t, len(name), 2*maxIDLen+1)
	assert.True(t, strings.HasSuffix(name, ".pdf"))
}

func TestFilename_LongIDsStayDistinct(t *testing.T) {
	x := Key{Kind: Messages, ID: strings.Repeat("a", 130) + "X"}
	y := Key{Kind: Messages, ID: strings.Repeat("a", 130) + "Y"}

	assert.NotEqual(t, x.filename(), y.filename())
	assert.Equal(t, x.filename(), Key{Kind: Messages, ID: x.ID}.filename())
	assert.LessOrEqual(t, len(x.filename()), maxIDLen+len(".md"))
	assert.True(t, strings.HasPrefix(x.filename(), strings.Repeat("a", 100)))

	short := Key{Kind: Messages, ID: "18c2f0a1b2"}
	assert.Equal(t, "18c2f0a1b2.md", short.filename())
}

func TestStore_LongIDsDoNotOverwrite(t *testing.T) {
	s := New(t.TempDir())
	defer s.Teardown()
	ctx := context.Background()

	x, err := s.Put(ctx, Key{Kind: Messages, ID: strings.Repeat("a", 130) + "X"}, []byte("first"))
	require.NoError(t, err)
	y, err := s.Put(ctx, Key{Kind: Messages, ID: strings.Repeat("a", 130) + "Y"}, []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, x.Path, y.Path)
	got, err := os.ReadFile(x.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}
