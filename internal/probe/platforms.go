package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trace-osint/trace/internal/model"
)

// PlatformSweepProbe checks whether a username exists on a fixed set of
// platforms. Checks run concurrently; the shared client's outbound cap
// keeps the burst polite.
type PlatformSweepProbe struct {
	deps Deps
}

func NewPlatformSweepProbe(deps Deps) *PlatformSweepProbe {
	return &PlatformSweepProbe{deps: deps}
}

func (p *PlatformSweepProbe) Name() string           { return "Platform Sweep" }
func (p *PlatformSweepProbe) Accepts(seed Seed) bool { return seed.Kind == SeedUsername }

type platformDef struct {
	name       string
	platform   string
	checkURL   string // %s receives the username
	profileURL string
	exists     func(status int, body string) bool
}

func statusOK(status int, _ string) bool { return status == 200 }

var sweepPlatforms = []platformDef{
	{"GitHub", "github", "https://api.github.com/users/%s", "https://github.com/%s", statusOK},
	{"Reddit", "reddit", "https://www.reddit.com/user/%s/about.json", "https://reddit.com/user/%s",
		func(s int, b string) bool { return s == 200 && strings.Contains(b, `"name"`) }},
	{"GitLab", "gitlab", "https://gitlab.com/api/v4/users?username=%s", "https://gitlab.com/%s",
		func(s int, b string) bool { return s == 200 && strings.Contains(b, `"username"`) }},
	{"Keybase", "keybase", "https://keybase.io/_/api/1.0/user/lookup.json?usernames=%s&fields=basics",
		"https://keybase.io/%s",
		func(s int, b string) bool { return s == 200 && strings.Contains(b, `"username"`) }},
	{"Hacker News", "hackernews", "https://hacker-news.firebaseio.com/v0/user/%s.json",
		"https://news.ycombinator.com/user?id=%s",
		func(s int, b string) bool { return s == 200 && strings.TrimSpace(b) != "null" }},
	{"Twitch", "twitch", "https://m.twitch.tv/%s", "https://twitch.tv/%s",
		func(s int, b string) bool { return s == 200 && !strings.Contains(b, "isn't available") }},
	{"Steam", "steam", "https://steamcommunity.com/id/%s", "https://steamcommunity.com/id/%s",
		func(s int, b string) bool { return s == 200 && !strings.Contains(b, "could not be found") }},
	{"Medium", "medium", "https://medium.com/@%s", "https://medium.com/@%s",
		func(s int, b string) bool { return s == 200 && !strings.Contains(b, "PAGE NOT FOUND") }},
	{"Dev.to", "devto", "https://dev.to/api/users/by_username?url=%s", "https://dev.to/%s", statusOK},
	{"npm", "npm", "https://www.npmjs.com/~%s", "https://www.npmjs.com/~%s", statusOK},
	{"PyPI", "pypi", "https://pypi.org/user/%s/", "https://pypi.org/user/%s/", statusOK},
	{"Docker Hub", "dockerhub", "https://hub.docker.com/v2/users/%s", "https://hub.docker.com/u/%s", statusOK},
	{"Linktree", "linktree", "https://linktr.ee/%s", "https://linktr.ee/%s",
		func(s int, b string) bool { return s == 200 && !strings.Contains(b, "page isn't") }},
	{"SoundCloud", "soundcloud", "https://soundcloud.com/%s", "https://soundcloud.com/%s", statusOK},
	{"About.me", "aboutme", "https://about.me/%s", "https://about.me/%s", statusOK},
}

func (p *PlatformSweepProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	username := strings.ToLower(strings.TrimSpace(seed.Username))
	if username == "" {
		return nil
	}

	var (
		mu    sync.Mutex
		found []platformDef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for _, def := range sweepPlatforms {
		g.Go(func() error {
			outcome, body, err := p.deps.Client.GetBody(gctx, fmt.Sprintf(def.checkURL, username), nil)
			if err != nil {
				return nil // absorbed; one dead platform must not kill the sweep
			}
			if def.exists(outcome.StatusCode, string(body)) {
				mu.Lock()
				found = append(found, def)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, def := range found {
		f := model.New(model.TypeAccount, model.SeverityMedium,
			fmt.Sprintf("%s: %s", def.name, username))
		f.Description = "Account with this username exists on " + def.name
		f.Source = def.name
		f.SourceURL = fmt.Sprintf(def.profileURL, username)
		f.Data = map[string]any{
			"platform":         def.platform,
			"username":         username,
			"url":              fmt.Sprintf(def.profileURL, username),
			"discovery_method": "username_sweep",
		}
		f.ParentID = parentID
		f.LinkLabel = "account found"
		emit(f)
	}

	if len(found) >= 3 {
		names := make([]string, 0, len(found))
		for _, def := range found {
			names = append(names, def.name)
		}
		f := model.New(model.TypeUsername, model.SeverityHigh,
			fmt.Sprintf("Username Reused on %d Platforms", len(found)))
		f.Description = username + " found on: " + strings.Join(names, ", ")
		f.Source = "Platform Sweep"
		f.Data = map[string]any{
			"username":    username,
			"platforms":   names,
			"remediation": "Reused handles let strangers link your accounts; vary them",
		}
		f.ParentID = parentID
		f.LinkLabel = "reuses handle"
		emit(f)
	}
	return nil
}
