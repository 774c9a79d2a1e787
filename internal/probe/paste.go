package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// PasteProbe looks for the address in paste-site dump indices and, when a
// GitHub token is configured, in public code via the code search API.
type PasteProbe struct {
	deps Deps
}

func NewPasteProbe(deps Deps) *PasteProbe { return &PasteProbe{deps: deps} }

func (p *PasteProbe) Name() string           { return "Paste Search" }
func (p *PasteProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

func (p *PasteProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	p.searchDumps(ctx, email, parentID, emit)
	if p.deps.GitHubToken != "" {
		p.searchCode(ctx, email, parentID, emit)
	}
	return nil
}

func (p *PasteProbe) searchDumps(ctx context.Context, email, parentID string, emit EmitFunc) {
	var out struct {
		Count int `json:"count"`
		Data  []struct {
			ID   string `json:"id"`
			Time string `json:"time"`
		} `json:"data"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://psbdmp.ws/api/v3/search/"+url.PathEscape(email), &out, nil)
	if err != nil {
		p.deps.Logger.Debug("paste dump search unreachable", zap.Error(err))
		return
	}
	if !outcome.OK() || out.Count == 0 {
		return
	}

	ids := make([]string, 0, min(len(out.Data), 10))
	for _, d := range out.Data[:min(len(out.Data), 10)] {
		ids = append(ids, d.ID)
	}
	f := model.New(model.TypeBreach, model.SeverityHigh,
		fmt.Sprintf("Found in %d Paste Dump(s)", out.Count))
	f.Description = "Address appears in archived paste-site dumps, often alongside credentials"
	f.Source = "Psbdmp"
	f.SourceURL = "https://psbdmp.ws"
	f.Data = map[string]any{
		"paste_count": out.Count,
		"paste_ids":   ids,
		"remediation": "Assume any password pasted alongside the address is burned",
	}
	f.ParentID = parentID
	f.LinkLabel = "dumped in"
	emit(f)
}

func (p *PasteProbe) searchCode(ctx context.Context, email, parentID string, emit EmitFunc) {
	var out struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			HTMLURL    string `json:"html_url"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	q := url.QueryEscape(fmt.Sprintf("%q", email))
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/search/code?per_page=5&q="+q, &out,
		&client.Options{BearerToken: p.deps.GitHubToken})
	if err != nil {
		p.deps.Logger.Debug("code search unreachable", zap.Error(err))
		return
	}
	if !outcome.OK() || out.TotalCount == 0 {
		return
	}

	repos := make([]string, 0, len(out.Items))
	urls := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		repos = append(repos, it.Repository.FullName)
		urls = append(urls, it.HTMLURL)
	}
	f := model.New(model.TypeURL, model.SeverityHigh,
		fmt.Sprintf("Email in Public Code: %d File(s)", out.TotalCount))
	f.Description = "Address committed to public repositories: " + strings.Join(repos, ", ")
	f.Source = "GitHub Code Search"
	f.Data = map[string]any{
		"total_count": out.TotalCount,
		"repos":       repos,
		"urls":        urls,
		"remediation": "Scrub the address from repository history or take the repo private",
	}
	f.ParentID = parentID
	f.LinkLabel = "committed in"
	emit(f)
}
