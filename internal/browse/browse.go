// Package browse lists the site's calls directory: radio systems and
// the talkgroups they carry. The directory has no JSON API, so listings
// are scraped from the HTML pages and cached far longer than call data.
// System descriptions barely change; talkgroup rosters drift daily.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/radiolurker/crier/internal/bcfy"
	"github.com/radiolurker/crier/internal/cache"
	"github.com/radiolurker/crier/internal/ratelimit"
)

const (
	systemTTL    = 7 * 24 * time.Hour
	talkgroupTTL = 24 * time.Hour

	// Directory pages answer a plain browser UA; the API client string
	// draws a bot block.
	scrapeUserAgent = "Mozilla/5.0"
)

// System is one radio system in the directory.
type System struct {
	ID       int
	Name     string
	Type     string
	Location string
}

// Talkgroup is one talkgroup row from a system's directory page.
type Talkgroup struct {
	ID          int
	SystemID    int
	Name        string
	Description string
	Encrypted   bool
}

// Scraper reads directory pages. Listings never require a login, so
// the scraper carries no session.
type Scraper struct {
	baseURL *url.URL
	http    *http.Client
	limiter *ratelimit.Limiter
	store   *cache.Store
}

// New builds a scraper against the given base URL (empty selects the
// production site). The store may be nil, which disables caching.
func New(base string, limiter *ratelimit.Limiter, store *cache.Store) (*Scraper, error) {
	u, err := bcfy.ParseBaseURL(base)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		baseURL: u,
		http:    &http.Client{},
		limiter: limiter,
		store:   store,
	}, nil
}

var systemTypeRe = regexp.MustCompile(`System Type:\s*(\w+)`)

// System fetches one system's directory entry, serving a cached copy
// when present.
func (s *Scraper) System(ctx context.Context, systemID int) (System, error) {
	key := strconv.Itoa(systemID)
	if s.store != nil {
		if payload, ok := s.store.GetEntry("system", key); ok {
			var sys System
			if json.Unmarshal(payload, &sys) == nil {
				return sys, nil
			}
		}
	}

	doc, err := s.fetch(ctx, fmt.Sprintf("/calls/trs/%d", systemID), "browse system")
	if err != nil {
		return System{}, err
	}

	name := strings.TrimSpace(doc.Find("h1.btitle").First().Text())
	if name == "" {
		return System{}, &bcfy.ParseError{Op: "browse system", Err: fmt.Errorf("system %d: page has no title", systemID)}
	}
	sys := System{
		ID:       systemID,
		Name:     name,
		Type:     parseSystemType(doc),
		Location: parseLocation(doc),
	}

	if s.store != nil {
		if payload, err := json.Marshal(sys); err == nil {
			if err := s.store.PutEntry("system", key, payload, systemTTL); err != nil {
				return System{}, err
			}
		}
	}
	return sys, nil
}

// Talkgroups fetches the talkgroup roster for a system, serving a
// cached copy when present. An empty roster is not an error; systems
// without published talkgroups exist.
func (s *Scraper) Talkgroups(ctx context.Context, systemID int) ([]Talkgroup, error) {
	key := strconv.Itoa(systemID)
	if s.store != nil {
		if payload, ok := s.store.GetEntry("talkgroup", key); ok {
			var tgs []Talkgroup
			if json.Unmarshal(payload, &tgs) == nil {
				return tgs, nil
			}
		}
	}

	doc, err := s.fetch(ctx, fmt.Sprintf("/calls/tg/%d", systemID), "browse talkgroups")
	if err != nil {
		return nil, err
	}

	var tgs []Talkgroup
	doc.Find("table.btable tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		tg, ok := parseTalkgroupRow(row, systemID)
		if ok {
			tgs = append(tgs, tg)
		}
	})

	if s.store != nil {
		if payload, err := json.Marshal(tgs); err == nil {
			if err := s.store.PutEntry("talkgroup", key, payload, talkgroupTTL); err != nil {
				return nil, err
			}
		}
	}
	return tgs, nil
}

func (s *Scraper) fetch(ctx context.Context, path, op string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx, ratelimit.KindScrape); err != nil {
		return nil, err
	}

	reqURL := s.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &bcfy.FetchError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &bcfy.FetchError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return nil, &bcfy.FetchError{Op: op, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &bcfy.ParseError{Op: op, Err: err}
	}
	return doc, nil
}

func parseSystemType(doc *goquery.Document) string {
	if m := systemTypeRe.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return "Unknown"
}

func parseLocation(doc *goquery.Document) string {
	if loc := strings.TrimSpace(doc.Find("div.blocation").First().Text()); loc != "" {
		return loc
	}
	return "Unknown Location"
}

// parseTalkgroupRow reads one roster row: decimal ID, alpha tag,
// description. Rows that do not match that shape are skipped rather
// than failing the whole roster.
func parseTalkgroupRow(row *goquery.Selection, systemID int) (Talkgroup, bool) {
	cols := row.Find("td")
	if cols.Length() < 3 {
		return Talkgroup{}, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(cols.Eq(0).Text()))
	if err != nil {
		return Talkgroup{}, false
	}
	text := row.Text()
	return Talkgroup{
		ID:          id,
		SystemID:    systemID,
		Name:        strings.TrimSpace(cols.Eq(1).Text()),
		Description: strings.TrimSpace(cols.Eq(2).Text()),
		Encrypted:   strings.Contains(text, "🔒") || strings.Contains(text, "[E]"),
	}, true
}
