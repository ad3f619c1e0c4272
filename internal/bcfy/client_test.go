package bcfy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func activeSession(t *testing.T, base string) *Session {
	t.Helper()
	s, err := NewSession(base, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	s.token = "tok-abc"
	return s
}

func TestClient_FetchArchive(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/apis/archivecall.php" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		if c, err := r.Cookie("bcfyuser1"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calls": []Call{
				{ID: 11, SystemID: 7804, Talkgroup: 2451, StartTime: 1735690100, Duration: 8, Filename: "a", Hash: "h1"},
				{ID: 12, SystemID: 7804, Talkgroup: 2451, StartTime: 1735690200, Duration: 4, Filename: "b", Hash: "h2"},
			},
			"start": 1735689600,
			"end":   1735691400,
		})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, activeSession(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	res, err := c.FetchArchive(context.Background(), 7804, 2451, 1735689600)
	if err != nil {
		t.Fatalf("FetchArchive returned error: %v", err)
	}
	if len(res.Calls) != 2 || res.Calls[0].ID != 11 {
		t.Fatalf("calls = %#v, want 2 calls starting with id 11", res.Calls)
	}
	if res.Start != 1735689600 || res.End != 1735691400 {
		t.Fatalf("bounds = [%d, %d], want [1735689600, 1735691400]", res.Start, res.End)
	}
	if gotQuery.Get("group") != "7804-2451" || gotQuery.Get("s") != "1735689600" {
		t.Fatalf("query = %v, want group and s encoded", gotQuery)
	}
	if gotCookie != "tok-abc" {
		t.Fatalf("session cookie = %q, want tok-abc", gotCookie)
	}
}

func TestClient_FetchArchiveMissingCallsKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"start": 1, "end": 2}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, activeSession(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchArchive(context.Background(), 1, 2, 0)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("FetchArchive error = %v, want ParseError", err)
	}
}

func TestClient_RejectedTokenExpiresSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	session := activeSession(t, server.URL)
	c, err := NewClient(server.URL, session, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchArchive(context.Background(), 1, 2, 0)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("FetchArchive error = %v, want AuthError", err)
	}
	if session.Active() {
		t.Fatal("session still active after token rejection")
	}
}

func TestClient_ServerErrorIsFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, activeSession(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchArchive(context.Background(), 1, 2, 0)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("FetchArchive error = %v, want FetchError", err)
	}
	if fetchErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", fetchErr.Status)
	}
}

func TestClient_FetchLive(t *testing.T) {
	t.Parallel()

	var gotForm url.Values
	var gotXHR string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/ajax/update" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse live form: %v", err)
		}
		gotForm = r.PostForm
		gotXHR = r.Header.Get("X-Requested-With")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calls": []Call{{ID: 5, Talkgroup: 2451, StartTime: 1735690000}},
		})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, activeSession(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	got, err := c.FetchLive(context.Background(), LiveQuery{
		System:    7804,
		Talkgroup: 2451,
		Position:  1735689990,
		Init:      true,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("FetchLive returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("calls = %#v, want 1 call id 5", got)
	}
	if gotForm.Get("systemId") != "7804" ||
		gotForm.Get("talkgroupId") != "2451" ||
		gotForm.Get("lastUpdate") != "1735689990" ||
		gotForm.Get("mode") != "gettalkgroups" ||
		gotForm.Get("sessionId") != "sess-1" {
		t.Fatalf("form = %v, want all live params encoded", gotForm)
	}
	if gotXHR != "XMLHttpRequest" {
		t.Fatalf("X-Requested-With = %q, want XMLHttpRequest", gotXHR)
	}

	// Subsequent polls switch modes.
	_, err = c.FetchLive(context.Background(), LiveQuery{System: 7804, Talkgroup: 2451})
	if err != nil {
		t.Fatalf("FetchLive poll returned error: %v", err)
	}
	if gotForm.Get("mode") != "getupdate" {
		t.Fatalf("poll mode = %q, want getupdate", gotForm.Get("mode"))
	}
}

func TestClient_FetchLiveEmptyUpdate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// No calls key at all: a normal quiet update.
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, activeSession(t, server.URL), nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	got, err := c.FetchLive(context.Background(), LiveQuery{System: 1, Talkgroup: 2})
	if err != nil {
		t.Fatalf("FetchLive returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("calls = %#v, want empty", got)
	}
}

func TestCall_MediaURLAndOrdering(t *testing.T) {
	c := Call{ID: 9, SystemID: 7804, Filename: "202501011200-123456", Hash: "ab12cd"}
	want := "https://calls.broadcastify.com/ab12cd/7804/202501011200-123456.mp3"
	if got := c.MediaURL(); got != want {
		t.Fatalf("MediaURL = %q, want %q", got, want)
	}

	a := Call{ID: 1, Talkgroup: 10, StartTime: 100}
	b := Call{ID: 2, Talkgroup: 10, StartTime: 100}
	later := Call{ID: 1, Talkgroup: 10, StartTime: 101}
	if !b.After(a) || a.After(b) {
		t.Fatal("After should break start-time ties by id")
	}
	if !later.After(b) {
		t.Fatal("After should order by start time first")
	}
	if !a.Same(Call{ID: 1, Talkgroup: 10}) || a.Same(Call{ID: 1, Talkgroup: 11}) {
		t.Fatal("Same should require matching id and talkgroup")
	}
}
