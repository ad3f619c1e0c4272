package bcfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/radiolurker/crier/internal/ratelimit"
)

const (
	defaultBaseURL   = "https://www.broadcastify.com"
	defaultUserAgent = "crier/0.1"
)

// CallAPI is the remote surface the fetchers consume. Implemented by
// *Client; test doubles stand in for the live site.
type CallAPI interface {
	FetchArchive(ctx context.Context, system, talkgroup int, blockStart int64) (ArchiveResult, error)
	FetchLive(ctx context.Context, q LiveQuery) ([]Call, error)
}

var _ CallAPI = (*Client)(nil)

// Client talks to the Broadcastify Calls API using the token held by its
// Session. It performs no caching and no dedup; those live above it.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	session   *Session
	limiter   *ratelimit.Limiter
}

// NewClient builds a Client against the given base URL (empty selects
// the production site). The limiter may be nil.
func NewClient(base string, session *Session, limiter *ratelimit.Limiter) (*Client, error) {
	u, err := ParseBaseURL(base)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   u,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		session:   session,
		limiter:   limiter,
	}, nil
}

// FetchArchive retrieves the archived calls for one 30-minute block.
// blockStart must already be floored to a block boundary.
func (c *Client) FetchArchive(ctx context.Context, system, talkgroup int, blockStart int64) (ArchiveResult, error) {
	if c == nil {
		return ArchiveResult{}, &FetchError{Op: "archive", Err: fmt.Errorf("client is nil")}
	}
	if err := c.limiter.Wait(ctx, ratelimit.KindArchive); err != nil {
		return ArchiveResult{}, &FetchError{Op: "archive", Err: err}
	}

	values := url.Values{}
	values.Set("group", fmt.Sprintf("%d-%d", system, talkgroup))
	values.Set("s", strconv.FormatInt(blockStart, 10))
	rel := &url.URL{Path: "/calls/apis/archivecall.php", RawQuery: values.Encode()}

	req, err := c.newRequest(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return ArchiveResult{}, &FetchError{Op: "archive", Err: err}
	}

	var payload archiveResponse
	if err := c.do(req, "archive", &payload); err != nil {
		return ArchiveResult{}, err
	}
	if payload.Calls == nil {
		return ArchiveResult{}, &ParseError{Op: "archive"}
	}
	return ArchiveResult{Calls: *payload.Calls, Start: payload.Start, End: payload.End}, nil
}

// LiveQuery configures one live feed request.
type LiveQuery struct {
	System    int
	Talkgroup int
	Position  int64 // unix seconds the server should report from
	Init      bool  // first request of a session asks for the full snapshot
	SessionID string
}

// FetchLive retrieves recent calls for a talkgroup's live feed. The
// server has no cursor; overlapping results across polls are expected
// and deduplicated by the caller.
func (c *Client) FetchLive(ctx context.Context, q LiveQuery) ([]Call, error) {
	if c == nil {
		return nil, &FetchError{Op: "live", Err: fmt.Errorf("client is nil")}
	}
	if err := c.limiter.Wait(ctx, ratelimit.KindLive); err != nil {
		return nil, &FetchError{Op: "live", Err: err}
	}

	mode := "getupdate"
	if q.Init {
		mode = "gettalkgroups"
	}
	form := url.Values{
		"systemId":    {strconv.Itoa(q.System)},
		"talkgroupId": {strconv.Itoa(q.Talkgroup)},
		"lastUpdate":  {strconv.FormatInt(q.Position, 10)},
		"mode":        {mode},
	}
	if q.SessionID != "" {
		form.Set("sessionId", q.SessionID)
	}

	rel := &url.URL{Path: "/calls/ajax/update"}
	req, err := c.newRequest(ctx, http.MethodPost, rel, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &FetchError{Op: "live", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// The endpoint checks for browser-shaped XHR traffic.
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", c.baseURL.String())
	req.Header.Set("Referer", fmt.Sprintf("%s/calls/tg/%d/%d", c.baseURL, q.System, q.Talkgroup))

	var payload liveResponse
	if err := c.do(req, "live", &payload); err != nil {
		return nil, err
	}
	return payload.Calls, nil
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, body *strings.Reader) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token := c.session.Token(); token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The site rejected the cookie; drop it so the next guard
		// re-authenticates instead of replaying a dead token.
		c.session.Expire()
		return &AuthError{Reason: fmt.Sprintf("%s rejected session token (status %d)", op, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &FetchError{Op: op, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	return nil
}
