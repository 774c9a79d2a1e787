package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/trace-osint/trace/internal/model"
)

// ConnectedAccountsProbe links accounts across platforms: handles
// mentioned in collected bios, plus existence checks of discovered
// usernames on platforms the scan has not confirmed yet.
type ConnectedAccountsProbe struct {
	deps Deps
}

func NewConnectedAccountsProbe(deps Deps) *ConnectedAccountsProbe {
	return &ConnectedAccountsProbe{deps: deps}
}

func (p *ConnectedAccountsProbe) Name() string           { return "Connected Accounts" }
func (p *ConnectedAccountsProbe) Accepts(seed Seed) bool { return seed.Kind == SeedProfile }

var bioHandlePatterns = map[string]*regexp.Regexp{
	"twitter":   regexp.MustCompile(`(?i)(?:twitter|x)\.com/([A-Za-z0-9_]{3,30})|(?:^|\s)(?:twitter|tw)[:\s]+@?([A-Za-z0-9_]{3,30})`),
	"instagram": regexp.MustCompile(`(?i)instagram\.com/([A-Za-z0-9_.]{3,30})|(?:^|\s)(?:instagram|ig)[:\s]+@?([A-Za-z0-9_.]{3,30})`),
	"linkedin":  regexp.MustCompile(`(?i)linkedin\.com/in/([A-Za-z0-9-]{3,60})`),
	"github":    regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9-]{3,39})`),
	"youtube":   regexp.MustCompile(`(?i)youtube\.com/@([A-Za-z0-9_.-]{3,30})`),
}

// crossCheckEndpoints are the platforms cheap enough to probe for every
// username candidate during correlation.
var crossCheckEndpoints = map[string]struct {
	checkURL   string
	profileURL string
}{
	"github":  {"https://api.github.com/users/%s", "https://github.com/%s"},
	"reddit":  {"https://www.reddit.com/user/%s/about.json", "https://reddit.com/user/%s"},
	"gitlab":  {"https://gitlab.com/api/v4/users?username=%s", "https://gitlab.com/%s"},
	"keybase": {"https://keybase.io/_/api/1.0/user/lookup.json?usernames=%s&fields=basics", "https://keybase.io/%s"},
}

// ExtractBioHandles returns platform->handle pairs mentioned in free-form
// bio text.
func ExtractBioHandles(bio string) []AccountRef {
	var out []AccountRef
	for platform, re := range bioHandlePatterns {
		for _, m := range re.FindAllStringSubmatch(bio, -1) {
			handle := ""
			for _, group := range m[1:] {
				if group != "" {
					handle = group
					break
				}
			}
			if handle == "" {
				continue
			}
			out = append(out, AccountRef{Platform: platform, Username: handle})
		}
	}
	return out
}

func (p *ConnectedAccountsProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	profile := seed.Profile

	known := map[string]bool{}
	knownPlatforms := map[string]bool{}
	for _, acct := range profile.Accounts {
		known[accountKey(acct.Platform, acct.Username)] = true
		knownPlatforms[strings.ToLower(acct.Platform)] = true
	}

	connections := 0

	// Pass 1: handles dropped in bios.
	for _, bio := range profile.Bios {
		for _, ref := range ExtractBioHandles(bio) {
			key := accountKey(ref.Platform, ref.Username)
			if known[key] {
				continue
			}
			known[key] = true
			connections++

			f := model.New(model.TypeAccount, model.SeverityMedium,
				fmt.Sprintf("Linked: %s @%s", titleCase(ref.Platform), ref.Username))
			f.Description = "Handle mentioned in a collected profile bio"
			f.Source = "Correlation Engine"
			f.Data = map[string]any{
				"platform":         ref.Platform,
				"username":         ref.Username,
				"discovery_method": "bio_mention",
				"confidence":       "medium",
			}
			f.ParentID = parentID
			f.LinkLabel = "mentions"
			emit(f)
		}
	}

	// Pass 2: known usernames on unconfirmed platforms.
	for _, username := range profile.Usernames[:min(len(profile.Usernames), 3)] {
		for platform, ep := range crossCheckEndpoints {
			if ctx.Err() != nil {
				return nil
			}
			key := accountKey(platform, username)
			if known[key] || knownPlatforms[platform] {
				continue
			}
			outcome, body, err := p.deps.Client.GetBody(ctx, fmt.Sprintf(ep.checkURL, username), nil)
			if err != nil || outcome.StatusCode != 200 {
				continue
			}
			if platform == "gitlab" && !strings.Contains(string(body), `"username"`) {
				continue
			}
			known[key] = true
			connections++

			f := model.New(model.TypeAccount, model.SeverityMedium,
				fmt.Sprintf("Linked: %s @%s", titleCase(platform), username))
			f.Description = "Same username confirmed on another platform"
			f.Source = "Correlation Engine"
			f.SourceURL = fmt.Sprintf(ep.profileURL, username)
			f.Data = map[string]any{
				"platform":         platform,
				"username":         username,
				"url":              fmt.Sprintf(ep.profileURL, username),
				"discovery_method": "username_match",
				"confidence":       "high",
			}
			f.ParentID = parentID
			f.LinkLabel = "same handle on"
			emit(f)
		}
	}

	if total := connections + len(profile.Accounts); connections > 0 && total >= 3 {
		f := model.New(model.TypeSocial, model.SeverityHigh, "Account Network Mapped")
		f.Description = fmt.Sprintf(
			"%d accounts link back to one identity; any one of them deanonymizes the rest", total)
		f.Source = "Correlation Engine"
		f.Data = map[string]any{
			"account_count":   total,
			"new_connections": connections,
			"remediation":     "Break the graph: unique handles, no cross-links in bios",
		}
		f.ParentID = parentID
		f.LinkLabel = "forms network"
		emit(f)
	}
	return nil
}

func accountKey(platform, username string) string {
	return strings.ToLower(platform) + ":" + strings.ToLower(username)
}
