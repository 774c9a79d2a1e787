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

// GitHubSecretsProbe looks for credential material leaked in a user's
// public repositories: secret-shaped strings via code search (token
// required) and sensitive filenames committed at repository roots.
type GitHubSecretsProbe struct {
	deps Deps
}

func NewGitHubSecretsProbe(deps Deps) *GitHubSecretsProbe {
	return &GitHubSecretsProbe{deps: deps}
}

func (p *GitHubSecretsProbe) Name() string           { return "GitHub Secrets Scan" }
func (p *GitHubSecretsProbe) Accepts(seed Seed) bool { return seed.Kind == SeedUsername }

type secretPattern struct {
	name  string
	query string
}

var secretPatterns = []secretPattern{
	{"AWS Access Key", `AKIA`},
	{"Google API Key", `AIzaSy`},
	{"Slack Token", `xoxb OR xoxp`},
	{"Private Key", `"BEGIN RSA PRIVATE KEY" OR "BEGIN OPENSSH PRIVATE KEY"`},
	{"Hardcoded Password", `"password =" language:python OR language:javascript`},
}

var sensitiveFilenames = map[string]string{
	".env":             "environment file with credentials",
	".env.local":       "environment file with credentials",
	"credentials":      "credential store",
	"credentials.json": "service-account credentials",
	"id_rsa":           "SSH private key",
	".npmrc":           "registry auth token",
	".pypirc":          "registry auth token",
	".netrc":           "machine credentials",
	"secrets.yml":      "application secrets",
	"secrets.yaml":     "application secrets",
}

func (p *GitHubSecretsProbe) options() *client.Options {
	if p.deps.GitHubToken == "" {
		return nil
	}
	return &client.Options{BearerToken: p.deps.GitHubToken}
}

func (p *GitHubSecretsProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	username := strings.TrimSpace(seed.Username)

	if p.deps.GitHubToken != "" {
		p.searchSecretPatterns(ctx, username, parentID, emit)
	}
	p.scanSensitiveFiles(ctx, username, parentID, emit)
	return nil
}

func (p *GitHubSecretsProbe) searchSecretPatterns(ctx context.Context, username, parentID string, emit EmitFunc) {
	for _, pat := range secretPatterns {
		if ctx.Err() != nil {
			return
		}
		var out struct {
			TotalCount int `json:"total_count"`
			Items      []struct {
				HTMLURL    string `json:"html_url"`
				Path       string `json:"path"`
				Repository struct {
					FullName string `json:"full_name"`
				} `json:"repository"`
			} `json:"items"`
		}
		q := url.QueryEscape(fmt.Sprintf("user:%s %s", username, pat.query))
		outcome, err := p.deps.Client.GetJSON(ctx,
			"https://api.github.com/search/code?per_page=3&q="+q, &out, p.options())
		if err != nil {
			p.deps.Logger.Debug("secret search unreachable", zap.Error(err))
			return
		}
		if !outcome.OK() || out.TotalCount == 0 {
			continue
		}

		files := make([]string, 0, len(out.Items))
		for _, it := range out.Items {
			files = append(files, it.Repository.FullName+"/"+it.Path)
		}
		f := model.New(model.TypePassword, model.SeverityCritical,
			"Secret Exposed: "+pat.name)
		f.Description = fmt.Sprintf("%d file(s) in public repositories match a %s pattern",
			out.TotalCount, strings.ToLower(pat.name))
		f.Source = "GitHub Code Search"
		f.Data = map[string]any{
			"pattern":     pat.name,
			"match_count": out.TotalCount,
			"files":       files,
			"remediation": "Revoke the credential immediately; rotation beats history rewriting",
		}
		f.ParentID = parentID
		f.LinkLabel = "leaks secret"
		emit(f)
	}
}

func (p *GitHubSecretsProbe) scanSensitiveFiles(ctx context.Context, username, parentID string, emit EmitFunc) {
	var repos []githubRepo
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/users/"+username+"/repos?sort=updated&per_page=5", &repos, p.options())
	if err != nil || !outcome.OK() {
		return
	}

	for _, repo := range repos {
		if repo.Fork || ctx.Err() != nil {
			continue
		}
		var contents []struct {
			Name    string `json:"name"`
			HTMLURL string `json:"html_url"`
		}
		outcome, err := p.deps.Client.GetJSON(ctx,
			"https://api.github.com/repos/"+repo.FullName+"/contents/", &contents, p.options())
		if err != nil || !outcome.OK() {
			continue
		}
		for _, entry := range contents {
			desc, sensitive := sensitiveFilenames[strings.ToLower(entry.Name)]
			if !sensitive {
				continue
			}
			f := model.New(model.TypePassword, model.SeverityHigh,
				"Sensitive File Committed: "+entry.Name)
			f.Description = "Repository " + repo.FullName + " publishes a " + desc
			f.Source = "GitHub"
			f.SourceURL = entry.HTMLURL
			f.Data = map[string]any{
				"filename":    entry.Name,
				"repo":        repo.FullName,
				"file_kind":   desc,
				"remediation": "Delete the file, rotate anything inside it, add it to .gitignore",
			}
			f.ParentID = parentID
			f.LinkLabel = "committed"
			emit(f)
		}
	}
}
