package bcfy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const sessionCookie = "bcfyuser1"

// Session holds Broadcastify credentials and the server-issued session
// cookie. Credentials live only in memory. All token state is guarded by
// a mutex so fetchers sharing one session cannot race a refresh.
type Session struct {
	mu        sync.Mutex
	username  string
	password  string
	token     string
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// NewSession builds a session against the given base URL (empty selects
// the production site). The session starts unauthenticated.
func NewSession(base, username, password string) (*Session, error) {
	u, err := ParseBaseURL(base)
	if err != nil {
		return nil, err
	}
	return &Session{
		username: username,
		password: password,
		baseURL:  u,
		http: &http.Client{
			// The login endpoint answers with a redirect whose Location
			// header encodes the outcome. Following it would discard that.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Active reports whether a session token is currently held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Token returns the current session cookie value, empty when inactive.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Expire discards the local token. Fetch paths call this when the server
// rejects the cookie, so the next EnsureActive re-authenticates.
func (s *Session) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Login authenticates against the remote site. On failure the session is
// left exactly as it was.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// EnsureActive re-authenticates with the stored credentials when no
// token is held. It is the guard fetchers run before each remote call.
// Double-checked under the lock: a refresh that lost the race sees the
// fresh token and returns without issuing a duplicate login.
func (s *Session) EnsureActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return nil
	}
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) error {
	if s.token != "" {
		return nil
	}
	form := url.Values{
		"username": {s.username},
		"password": {s.password},
		"action":   {"auth"},
		"redirect": {s.baseURL.String()},
	}
	reqURL := s.baseURL.ResolveReference(&url.URL{Path: "/login/"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return &FetchError{Op: "login", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return &FetchError{Op: "login", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &FetchError{Op: "login", Status: resp.StatusCode}
	}
	if loc := resp.Header.Get("Location"); strings.Contains(loc, "failed=1") {
		return &AuthError{Reason: "incorrect credentials"}
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			s.token = c.Value
			return nil
		}
	}
	// Premium accounts receive the session cookie; its absence means the
	// account cannot use the calls platform.
	return &AuthError{Reason: "no session cookie issued; account may lack calls access"}
}

// Logout invalidates the local token and informs the server. Calling it
// on an inactive session is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.mu.Unlock()
	if token == "" {
		return nil
	}

	reqURL := s.baseURL.ResolveReference(&url.URL{Path: "/account/", RawQuery: "action=logout"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &FetchError{Op: "logout", Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})

	resp, err := s.http.Do(req)
	if err != nil {
		return &FetchError{Op: "logout", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return &FetchError{Op: "logout", Status: resp.StatusCode}
	}
	return nil
}

// ParseBaseURL normalizes a configured site address to a bare scheme
// and host, defaulting to the production site when empty. Shared by
// everything that talks to the site, scrapers included.
func ParseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", base, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
