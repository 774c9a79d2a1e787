package probe

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// DorkProbe runs targeted search-engine queries ("dorks") for the address
// against the DuckDuckGo HTML endpoint and reports which document
// categories surface it.
type DorkProbe struct {
	deps Deps
}

func NewDorkProbe(deps Deps) *DorkProbe { return &DorkProbe{deps: deps} }

func (p *DorkProbe) Name() string           { return "Search Engine Dorks" }
func (p *DorkProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

type dorkPattern struct {
	category    string
	query       string // %s receives the quoted email
	severity    model.Severity
	remediation string
}

var dorkPatterns = []dorkPattern{
	{"Paste Sites", `site:pastebin.com %s`, model.SeverityCritical,
		"Request takedown of pastes exposing the address"},
	{"Spreadsheet Leaks", `%s (filetype:xls OR filetype:xlsx OR filetype:csv)`, model.SeverityCritical,
		"Ask the hosting site to remove the exported data"},
	{"Code Repositories", `site:github.com %s`, model.SeverityHigh,
		"Purge the address from committed code and history"},
	{"Documents", `%s (filetype:pdf OR filetype:doc OR filetype:docx)`, model.SeverityHigh,
		"Review documents for unintended publication"},
	{"Professional Profiles", `site:linkedin.com %s`, model.SeverityMedium, ""},
	{"Open Web", `%s`, model.SeverityMedium, ""},
}

var (
	resultLinkRe = regexp.MustCompile(`<a[^>]*class="result__a"[^>]*href="([^"]+)"`)
)

func (p *DorkProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	quoted := `"` + email + `"`

	categoriesHit := 0
	totalHits := 0
	for _, pat := range dorkPatterns {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		links := p.search(ctx, fmt.Sprintf(pat.query, quoted))
		if len(links) == 0 {
			continue
		}
		categoriesHit++
		totalHits += len(links)

		if pat.severity == model.SeverityMedium {
			continue // low-value categories only feed the summary
		}
		f := model.New(model.TypeURL, pat.severity,
			fmt.Sprintf("%s: %d Result(s)", pat.category, len(links)))
		f.Description = "Search results expose this address in indexed " + strings.ToLower(pat.category)
		f.Source = "DuckDuckGo"
		f.Data = map[string]any{
			"category": pat.category,
			"urls":     links,
		}
		if pat.remediation != "" {
			f.Data["remediation"] = pat.remediation
		}
		f.ParentID = parentID
		f.LinkLabel = "indexed in"
		emit(f)

		// Courteous pacing between engine queries.
		select {
		case <-time.After(400 * time.Millisecond):
		case <-ctx.Done():
			return nil
		}
	}

	if totalHits > 0 {
		f := model.New(model.TypeURL, model.SeverityMedium,
			fmt.Sprintf("Search Footprint: %d Result(s)", totalHits))
		f.Description = fmt.Sprintf("Address surfaced in %d search categories", categoriesHit)
		f.Source = "DuckDuckGo"
		f.Data = map[string]any{"total_results": totalHits, "categories": categoriesHit}
		f.ParentID = parentID
		f.LinkLabel = "searchable"
		emit(f)
	}
	return nil
}

// search runs one HTML-endpoint query and returns up to five result URLs.
func (p *DorkProbe) search(ctx context.Context, query string) []string {
	form := url.Values{"q": {query}}
	outcome, body, err := p.deps.Client.PostForm(ctx, "https://html.duckduckgo.com/html/", form, nil)
	if err != nil {
		p.deps.Logger.Debug("dork search unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() {
		return nil
	}
	return ExtractResultLinks(string(body), 5)
}

// ExtractResultLinks pulls organic result URLs out of the DuckDuckGo HTML
// page, unwrapping the redirect links it serves.
func ExtractResultLinks(html string, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range resultLinkRe.FindAllStringSubmatch(html, -1) {
		link := unwrapRedirect(m[1])
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
		if len(out) == limit {
			break
		}
	}
	return out
}

func unwrapRedirect(link string) string {
	if strings.Contains(link, "uddg=") {
		if u, err := url.Parse(link); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				if dec, err := url.QueryUnescape(target); err == nil {
					link = dec
				} else {
					link = target
				}
			}
		}
	}
	if !strings.HasPrefix(link, "http") {
		return ""
	}
	return link
}
