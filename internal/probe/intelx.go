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

const intelxBase = "https://2.intelx.io"

// IntelXProbe searches the Intelligence X free tier for the address in
// leaked databases and paste archives. Both endpoints are two-phase:
// submit a search, wait, then fetch results by id.
type IntelXProbe struct {
	deps Deps
}

func NewIntelXProbe(deps Deps) *IntelXProbe { return &IntelXProbe{deps: deps} }

func (p *IntelXProbe) Name() string           { return "IntelX Search" }
func (p *IntelXProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

var leakUsernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([a-zA-Z0-9_.-]{3,30}):[\w$./]{6,}`),   // user:password
	regexp.MustCompile(`(?i)user(?:name)?[=:]\s*([a-zA-Z0-9_.-]{3,30})`),
	regexp.MustCompile(`(?i)login[=:\s]+([a-zA-Z0-9_.-]{3,30})`),
	regexp.MustCompile(`@([a-zA-Z0-9_]{3,30})`),
}

var leakStopwords = map[string]bool{
	"password": true, "admin": true, "user": true, "login": true,
	"email": true, "null": true, "undefined": true,
}

var numericOnlyRe = regexp.MustCompile(`^[\d.]+$`)

// ExtractLeakUsernames pulls username-looking tokens out of leaked-record
// text, filtering obvious non-usernames and bare numbers.
func ExtractLeakUsernames(text string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range leakUsernamePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := m[1]
			key := strings.ToLower(candidate)
			if seen[key] || leakStopwords[key] || numericOnlyRe.MatchString(candidate) {
				continue
			}
			seen[key] = true
			out = append(out, candidate)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func (p *IntelXProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	localPart := email[:strings.LastIndex(email, "@")]

	discovered := map[string]bool{}
	var ordered []string
	record := func(name string) {
		key := strings.ToLower(name)
		if key == email || key == localPart || discovered[key] {
			return
		}
		discovered[key] = true
		ordered = append(ordered, name)
	}

	total := p.phonebook(ctx, email, record)
	if n := p.intelligent(ctx, email, record); n > total {
		total = n
	}

	for _, username := range ordered[:min(len(ordered), 10)] {
		f := model.New(model.TypeUsername, model.SeverityHigh, "Username Discovered: "+username)
		f.Description = "Found in leaked database records"
		f.Source = "IntelX"
		f.SourceURL = "https://intelx.io"
		f.Data = map[string]any{
			"username":         username,
			"discovery_method": "intelx_leak_search",
			"confidence":       "medium",
		}
		f.ParentID = parentID
		f.LinkLabel = "discovered username"
		emit(f)
	}

	if total > 0 {
		f := model.New(model.TypeBreach, model.SeverityHigh,
			fmt.Sprintf("IntelX: %d Records Found", total))
		f.Description = "Email found in leaked databases and paste archives"
		f.Source = "IntelX"
		f.SourceURL = "https://intelx.io/?s=" + url.QueryEscape(email)
		f.Data = map[string]any{
			"total_records": total,
			"usernames":     ordered,
			"remediation":   "Check for leaked credentials; change passwords",
		}
		f.ParentID = parentID
		f.LinkLabel = "found in"
		emit(f)
	}
	return nil
}

func (p *IntelXProbe) phonebook(ctx context.Context, email string, record func(string)) int {
	var submitted struct {
		ID string `json:"id"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		fmt.Sprintf("%s/phonebook/search?term=%s&maxresults=100&media=0&target=1&timeout=10",
			intelxBase, url.QueryEscape(email)), &submitted, nil)
	if err != nil || !outcome.OK() || submitted.ID == "" {
		if err != nil {
			p.deps.Logger.Debug("intelx phonebook unreachable", zap.Error(err))
		}
		return 0
	}
	if !sleepCtx(ctx, 2*time.Second) {
		return 0
	}

	var results struct {
		Selectors []struct {
			Value string `json:"selectorvalue"`
			Type  string `json:"selectortypeh"`
		} `json:"selectors"`
	}
	outcome, err = p.deps.Client.GetJSON(ctx,
		fmt.Sprintf("%s/phonebook/search/result?id=%s&limit=100", intelxBase, url.QueryEscape(submitted.ID)),
		&results, nil)
	if err != nil || !outcome.OK() {
		return 0
	}
	for _, sel := range results.Selectors[:min(len(results.Selectors), 50)] {
		if sel.Type == "Username" || sel.Type == "User" {
			record(sel.Value)
		}
		for _, name := range ExtractLeakUsernames(sel.Value, 20) {
			record(name)
		}
	}
	return len(results.Selectors)
}

func (p *IntelXProbe) intelligent(ctx context.Context, email string, record func(string)) int {
	var submitted struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"term": email, "maxresults": 50, "media": 0, "sort": 2, "terminate": []string{},
	}
	outcome, err := p.deps.Client.PostJSON(ctx, intelxBase+"/intelligent/search", payload, &submitted, nil)
	if err != nil || !outcome.OK() || submitted.ID == "" {
		return 0
	}
	if !sleepCtx(ctx, 3*time.Second) {
		return 0
	}

	var results struct {
		Records []struct {
			Name string `json:"name"`
		} `json:"records"`
	}
	outcome, err = p.deps.Client.GetJSON(ctx,
		intelxBase+"/intelligent/search/result?id="+url.QueryEscape(submitted.ID), &results, nil)
	if err != nil || !outcome.OK() {
		return 0
	}
	for _, rec := range results.Records[:min(len(results.Records), 20)] {
		for _, name := range ExtractLeakUsernames(rec.Name, 20) {
			record(name)
		}
	}
	return len(results.Records)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
