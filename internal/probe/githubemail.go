package probe

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// GitHubEmailProbe reverses an email address into GitHub identities via
// the commit-author and user search APIs. Runs unauthenticated when no
// token is configured; the lower rate limit is acceptable for one scan.
type GitHubEmailProbe struct {
	deps Deps
}

func NewGitHubEmailProbe(deps Deps) *GitHubEmailProbe { return &GitHubEmailProbe{deps: deps} }

func (p *GitHubEmailProbe) Name() string           { return "GitHub Email Search" }
func (p *GitHubEmailProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

func (p *GitHubEmailProbe) options() *client.Options {
	if p.deps.GitHubToken == "" {
		return nil
	}
	return &client.Options{BearerToken: p.deps.GitHubToken}
}

func (p *GitHubEmailProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	seen := map[string]bool{}

	p.searchCommits(ctx, email, parentID, seen, emit)
	p.searchUsers(ctx, email, parentID, seen, emit)
	return nil
}

func (p *GitHubEmailProbe) searchCommits(ctx context.Context, email, parentID string, seen map[string]bool, emit EmitFunc) {
	var out struct {
		Items []struct {
			Author struct {
				Login   string `json:"login"`
				HTMLURL string `json:"html_url"`
			} `json:"author"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	q := url.QueryEscape("author-email:" + email)
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/search/commits?per_page=10&q="+q, &out, p.options())
	if err != nil {
		p.deps.Logger.Debug("github commit search unreachable", zap.Error(err))
		return
	}
	if !outcome.OK() {
		return
	}
	for _, it := range out.Items {
		login := it.Author.Login
		if login == "" || seen[strings.ToLower(login)] {
			continue
		}
		seen[strings.ToLower(login)] = true
		f := model.New(model.TypeUsername, model.SeverityHigh, "GitHub Username Discovered: "+login)
		f.Description = "Commits authored with this address in " + it.Repository.FullName
		f.Source = "GitHub"
		f.SourceURL = it.Author.HTMLURL
		f.Data = map[string]any{
			"username":         login,
			"platform":         "github",
			"discovery_method": "commit_author",
			"confidence":       "high",
		}
		f.ParentID = parentID
		f.LinkLabel = "commits as"
		emit(f)
	}
}

func (p *GitHubEmailProbe) searchUsers(ctx context.Context, email, parentID string, seen map[string]bool, emit EmitFunc) {
	var out struct {
		Items []struct {
			Login   string `json:"login"`
			HTMLURL string `json:"html_url"`
		} `json:"items"`
	}
	q := url.QueryEscape(email + " in:email")
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/search/users?per_page=5&q="+q, &out, p.options())
	if err != nil {
		p.deps.Logger.Debug("github user search unreachable", zap.Error(err))
		return
	}
	if !outcome.OK() {
		return
	}
	for _, it := range out.Items {
		if it.Login == "" || seen[strings.ToLower(it.Login)] {
			continue
		}
		seen[strings.ToLower(it.Login)] = true
		f := model.New(model.TypeUsername, model.SeverityHigh, "GitHub Username Discovered: "+it.Login)
		f.Description = "Public GitHub profile registered with this address"
		f.Source = "GitHub"
		f.SourceURL = it.HTMLURL
		f.Data = map[string]any{
			"username":         it.Login,
			"platform":         "github",
			"discovery_method": "profile_email",
			"confidence":       "high",
		}
		f.ParentID = parentID
		f.LinkLabel = "registered as"
		emit(f)
	}
}
