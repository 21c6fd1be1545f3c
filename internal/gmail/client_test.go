package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/teemow/mailpipe/internal/mailerr"
)

// newTestClient returns a Client talking to handler, with rate limiting
// disabled and instant backoff.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClientWithOptions(context.Background(),
		[]option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
		WithLimiter(nil),
		withSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewClientWithOptions() error = %v", err)
	}
	return c
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s"}]}}`, code, reason, reason)
}

func TestListMessages_PagesUntilLimit(t *testing.T) {
	var pages atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/users/me/messages") {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("q"); got != "from:alice" {
			t.Errorf("q = %q, want from:alice", got)
		}
		pages.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t1"}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"messages":[{"id":"m3","threadId":"t2"},{"id":"m4","threadId":"t3"}],"nextPageToken":"p3"}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	var ids []string
	for ref, err := range c.ListMessages(context.Background(), "from:alice", 3) {
		if err != nil {
			t.Fatalf("ListMessages() error = %v", err)
		}
		ids = append(ids, ref.ID)
	}

	if got := strings.Join(ids, ","); got != "m1,m2,m3" {
		t.Errorf("ListMessages() ids = %s, want m1,m2,m3", got)
	}
	if pages.Load() != 2 {
		t.Errorf("pages fetched = %d, want 2", pages.Load())
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusNotFound, "notFound")
	})

	_, err := c.GetMessage(context.Background(), "missing")
	if got := mailerr.KindOf(err); got != mailerr.NotFound {
		t.Fatalf("GetMessage() kind = %v, want %v (err %v)", got, mailerr.NotFound, err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGetMessage_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeAPIError(w, http.StatusServiceUnavailable, "backendError")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"m1","threadId":"t1","snippet":"hello"}`)
	})

	msg, err := c.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if msg.Id != "m1" {
		t.Errorf("GetMessage() id = %q, want m1", msg.Id)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetMessage_GivesUpAfterBudget(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusTooManyRequests, "rateLimitExceeded")
	})

	_, err := c.GetMessage(context.Background(), "m1")
	if got := mailerr.KindOf(err); got != mailerr.Transient {
		t.Fatalf("GetMessage() kind = %v, want %v", got, mailerr.Transient)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetMessage_LimiterErrors(t *testing.T) {
	tests := []struct {
		name     string
		limiter  func() *rate.Limiter
		timeout  time.Duration
		cancel   bool
		wantKind mailerr.Kind
		wantCtx  error
	}{
		{
			name:     "cost above burst",
			limiter:  func() *rate.Limiter { return rate.NewLimiter(rate.Every(time.Hour), unitsMessagesGet-1) },
			wantKind: mailerr.Transient,
		},
		{
			name: "wait exceeds deadline",
			limiter: func() *rate.Limiter {
				l := rate.NewLimiter(rate.Every(time.Hour), unitsMessagesGet)
				l.AllowN(time.Now(), unitsMessagesGet)
				return l
			},
			timeout:  time.Minute,
			wantKind: mailerr.Transient,
		},
		{
			name:    "canceled",
			limiter: func() *rate.Limiter { return rate.NewLimiter(rate.Every(time.Hour), unitsMessagesGet) },
			cancel:  true,
			wantCtx: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
			})
			c.limiter = tt.limiter()

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}
			if tt.cancel {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			_, err := c.GetMessage(ctx, "m1")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantCtx != nil {
				if !errors.Is(err, tt.wantCtx) {
					t.Errorf("GetMessage() error = %v, want %v", err, tt.wantCtx)
				}
			} else if got := mailerr.KindOf(err); got != tt.wantKind {
				t.Errorf("GetMessage() kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
			if strings.Contains(err.Error(), "gave up") {
				t.Errorf("limiter error reported as exhausted retries: %v", err)
			}
			if calls.Load() != 0 {
				t.Errorf("calls = %d, want 0", calls.Load())
			}
		})
	}
}

func TestGetAttachment_Decodes(t *testing.T) {
	payload := []byte("%PDF-1.4 binary \xff\xfe")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"size":%d,"data":%q}`, len(payload), base64.URLEncoding.EncodeToString(payload))
	})

	data, err := c.GetAttachment(context.Background(), "m1", "a1")
	if err != nil {
		t.Fatalf("GetAttachment() error = %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("GetAttachment() = %q, want %q", data, payload)
	}
}

func TestProfile_Cached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"emailAddress":"me@example.com"}`)
	})

	for range 2 {
		addr, err := c.Profile(context.Background())
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if addr != "me@example.com" {
			t.Errorf("Profile() = %q, want me@example.com", addr)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDecodeData(t *testing.T) {
	want := "hello?>world"
	tests := []struct {
		name  string
		input string
	}{
		{"url padded", base64.URLEncoding.EncodeToString([]byte(want))},
		{"url raw", base64.RawURLEncoding.EncodeToString([]byte(want))},
		{"standard", base64.StdEncoding.EncodeToString([]byte(want))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeData(tt.input)
			if err != nil {
				t.Fatalf("DecodeData() error = %v", err)
			}
			if string(got) != want {
				t.Errorf("DecodeData() = %q, want %q", got, want)
			}
		})
	}

	if _, err := DecodeData("!!!"); err == nil {
		t.Error("DecodeData() error = nil for garbage input")
	}
}

func TestSortLabels(t *testing.T) {
	labels := []LabelInfo{
		{ID: "Label_2", Name: "zeta", Type: LabelTypeUser},
		{ID: "INBOX", Name: "INBOX", Type: LabelTypeSystem},
		{ID: "Label_1", Name: "Alpha", Type: LabelTypeUser},
		{ID: "SENT", Name: "SENT", Type: LabelTypeSystem},
	}
	sortLabels(labels)

	var got []string
	for _, l := range labels {
		got = append(got, l.ID)
	}
	if strings.Join(got, ",") != "INBOX,SENT,Label_1,Label_2" {
		t.Errorf("sortLabels() = %v", got)
	}
}
