package bcfy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// loginHandler mimics the site's login endpoint: a redirect whose
// Location header and cookies encode the outcome.
func loginHandler(t *testing.T, outcome string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse login form: %v", err)
		}
		if r.PostFormValue("action") != "auth" {
			t.Errorf("login action = %q, want auth", r.PostFormValue("action"))
		}
		switch outcome {
		case "ok":
			http.SetCookie(w, &http.Cookie{Name: "bcfyuser1", Value: "tok-123"})
			w.Header().Set("Location", "https://www.broadcastify.com")
			w.WriteHeader(http.StatusFound)
		case "badcreds":
			w.Header().Set("Location", "/login/?failed=1")
			w.WriteHeader(http.StatusFound)
		case "nocookie":
			w.Header().Set("Location", "https://www.broadcastify.com")
			w.WriteHeader(http.StatusFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}
}

func TestSession_LoginStoresToken(t *testing.T) {
	server := httptest.NewServer(loginHandler(t, "ok"))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	if s.Active() {
		t.Fatal("session active before login")
	}

	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !s.Active() || s.Token() != "tok-123" {
		t.Fatalf("token = %q active = %v, want tok-123 active", s.Token(), s.Active())
	}
}

func TestSession_LoginBadCredentials(t *testing.T) {
	server := httptest.NewServer(loginHandler(t, "badcreds"))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "wrong")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	err = s.Login(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login error = %v, want AuthError", err)
	}
	if s.Active() {
		t.Fatal("session active after failed login")
	}
}

func TestSession_LoginWithoutSessionCookie(t *testing.T) {
	server := httptest.NewServer(loginHandler(t, "nocookie"))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	err = s.Login(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login error = %v, want AuthError", err)
	}
}

func TestSession_LoginServerError(t *testing.T) {
	server := httptest.NewServer(loginHandler(t, "servererror"))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	err = s.Login(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Login error = %v, want FetchError", err)
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		t.Fatalf("server error misclassified as AuthError: %v", err)
	}
}

func TestSession_EnsureActiveRetriesAfterFailure(t *testing.T) {
	outcome := "badcreds"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginHandler(t, outcome)(w, r)
	}))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	if err := s.EnsureActive(context.Background()); err == nil {
		t.Fatal("EnsureActive returned nil error for failed login")
	}
	if s.Active() {
		t.Fatal("session active after failed EnsureActive")
	}

	// A failed attempt leaves no partial state; the next guard retries.
	outcome = "ok"
	if err := s.EnsureActive(context.Background()); err != nil {
		t.Fatalf("EnsureActive after recovery returned error: %v", err)
	}
	if s.Token() != "tok-123" {
		t.Fatalf("token = %q, want tok-123", s.Token())
	}

	// Already active: no further login requests are issued.
	server.Close()
	if err := s.EnsureActive(context.Background()); err != nil {
		t.Fatalf("EnsureActive on active session returned error: %v", err)
	}
}

func TestSession_EnsureActiveConcurrentRefreshLogsInOnce(t *testing.T) {
	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		loginHandler(t, "ok")(w, r)
	}))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	// Every fetcher sharing the session guards each remote call, so an
	// expired token draws a burst of refreshes. Only one may log in; the
	// losers must observe the winner's token instead of clobbering it.
	const refreshers = 16
	start := make(chan struct{})
	errs := make([]error, refreshers)
	var wg sync.WaitGroup
	for i := 0; i < refreshers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.EnsureActive(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("EnsureActive #%d returned error: %v", i, err)
		}
	}
	if n := logins.Load(); n != 1 {
		t.Fatalf("login requests = %d, want 1", n)
	}
	if s.Token() != "tok-123" {
		t.Fatalf("token = %q, want the issued tok-123", s.Token())
	}
}

func TestSession_LogoutIsIdempotent(t *testing.T) {
	var logoutCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/account/" && r.URL.Query().Get("action") == "logout" {
			logoutCalls++
			if c, err := r.Cookie("bcfyuser1"); err != nil || c.Value == "" {
				t.Error("logout request missing session cookie")
			}
			return
		}
		loginHandler(t, "ok")(w, r)
	}))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	// Logout before login is a no-op.
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout on inactive session returned error: %v", err)
	}
	if logoutCalls != 0 {
		t.Fatalf("logout calls = %d, want 0", logoutCalls)
	}

	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if logoutCalls != 1 {
		t.Fatalf("logout calls = %d, want 1", logoutCalls)
	}
	if s.Active() {
		t.Fatal("session still active after logout")
	}

	// Second logout does not hit the server again.
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}
	if logoutCalls != 1 {
		t.Fatalf("logout calls = %d, want 1 after repeat", logoutCalls)
	}
}

func TestSession_ExpireForcesReauth(t *testing.T) {
	server := httptest.NewServer(loginHandler(t, "ok"))
	t.Cleanup(server.Close)

	s, err := NewSession(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	s.Expire()
	if s.Active() {
		t.Fatal("session active after Expire")
	}
	if err := s.EnsureActive(context.Background()); err != nil {
		t.Fatalf("EnsureActive after Expire returned error: %v", err)
	}
	if !s.Active() {
		t.Fatal("session inactive after re-auth")
	}
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := ParseBaseURL("")
	if err != nil {
		t.Fatalf("ParseBaseURL returned error: %v", err)
	}
	if u.String() != defaultBaseURL {
		t.Fatalf("base = %q, want %q", u.String(), defaultBaseURL)
	}

	u, err = ParseBaseURL("example.com/path?x=1#frag")
	if err != nil {
		t.Fatalf("ParseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}
