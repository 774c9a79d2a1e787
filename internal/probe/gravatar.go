package probe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// GravatarProbe resolves the avatar hash of an email into a public
// Gravatar profile: display name, location, bio and linked profile URLs,
// which in turn yield username candidates for hop 2.
type GravatarProbe struct {
	deps Deps
}

func NewGravatarProbe(deps Deps) *GravatarProbe { return &GravatarProbe{deps: deps} }

func (p *GravatarProbe) Name() string           { return "Gravatar Lookup" }
func (p *GravatarProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

// profileURLPatterns maps a hosting platform to the regexp extracting the
// username from one of its profile URLs.
var profileURLPatterns = map[string]*regexp.Regexp{
	"github":        regexp.MustCompile(`github\.com/([A-Za-z0-9_-]+)`),
	"gitlab":        regexp.MustCompile(`gitlab\.com/([A-Za-z0-9_-]+)`),
	"twitter":       regexp.MustCompile(`(?:twitter|x)\.com/([A-Za-z0-9_]+)`),
	"instagram":     regexp.MustCompile(`instagram\.com/([A-Za-z0-9_.]+)`),
	"linkedin":      regexp.MustCompile(`linkedin\.com/in/([A-Za-z0-9-]+)`),
	"reddit":        regexp.MustCompile(`reddit\.com/u(?:ser)?/([A-Za-z0-9_-]+)`),
	"facebook":      regexp.MustCompile(`facebook\.com/([A-Za-z0-9.]+)`),
	"youtube":       regexp.MustCompile(`youtube\.com/@([A-Za-z0-9_.-]+)`),
	"twitch":        regexp.MustCompile(`twitch\.tv/([A-Za-z0-9_]+)`),
	"medium":        regexp.MustCompile(`medium\.com/@([A-Za-z0-9_.-]+)`),
	"devto":         regexp.MustCompile(`dev\.to/([A-Za-z0-9_-]+)`),
	"keybase":       regexp.MustCompile(`keybase\.io/([A-Za-z0-9_]+)`),
	"mastodon":      regexp.MustCompile(`mastodon\.[a-z.]+/@([A-Za-z0-9_]+)`),
	"soundcloud":    regexp.MustCompile(`soundcloud\.com/([A-Za-z0-9_-]+)`),
	"stackoverflow": regexp.MustCompile(`stackoverflow\.com/users/\d+/([A-Za-z0-9_-]+)`),
	"linktree":      regexp.MustCompile(`linktr\.ee/([A-Za-z0-9_.]+)`),
}

type gravatarProfile struct {
	Entry []struct {
		DisplayName     string `json:"displayName"`
		CurrentLocation string `json:"currentLocation"`
		AboutMe         string `json:"aboutMe"`
		URLs            []struct {
			Value string `json:"value"`
			Title string `json:"title"`
		} `json:"urls"`
		Accounts []struct {
			Shortname string `json:"shortname"`
			URL       string `json:"url"`
			Username  string `json:"username"`
		} `json:"accounts"`
	} `json:"entry"`
}

// EmailMD5 is the Gravatar identifier for an address.
func EmailMD5(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func (p *GravatarProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	hash := EmailMD5(seed.Email)

	outcome, _, err := p.deps.Client.GetBody(ctx,
		fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=404", hash), nil)
	if err != nil {
		p.deps.Logger.Debug("gravatar unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() {
		return nil
	}

	avatar := model.New(model.TypeAccount, model.SeverityMedium, "Gravatar Profile Found")
	avatar.Description = "A public avatar is registered for this address"
	avatar.Source = "Gravatar"
	avatar.SourceURL = "https://gravatar.com/" + hash
	avatar.Data = map[string]any{"avatar_hash": hash}
	avatar.ParentID = parentID
	avatar.LinkLabel = "has avatar"
	emit(avatar)

	var profile gravatarProfile
	outcome, err = p.deps.Client.GetJSON(ctx,
		fmt.Sprintf("https://www.gravatar.com/%s.json", hash), &profile, nil)
	if err != nil || !outcome.OK() || len(profile.Entry) == 0 {
		return nil
	}
	entry := profile.Entry[0]

	if entry.DisplayName != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Name: "+entry.DisplayName)
		f.Description = "Display name on the public Gravatar profile"
		f.Source = "Gravatar"
		f.Data = map[string]any{"name": entry.DisplayName, "source": "gravatar"}
		f.ParentID = avatar.ID
		f.LinkLabel = "named"
		emit(f)
	}
	if entry.CurrentLocation != "" {
		f := model.New(model.TypeLocation, model.SeverityMedium, "Location: "+entry.CurrentLocation)
		f.Description = "Location on the public Gravatar profile"
		f.Source = "Gravatar"
		f.Data = map[string]any{"location": entry.CurrentLocation, "location_source": "gravatar"}
		f.ParentID = avatar.ID
		f.LinkLabel = "located in"
		emit(f)
	}
	if entry.AboutMe != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Public Bio Found")
		f.Description = trim(entry.AboutMe, 180)
		f.Source = "Gravatar"
		f.Data = map[string]any{"bio": entry.AboutMe}
		f.ParentID = avatar.ID
		f.LinkLabel = "describes self"
		emit(f)
	}

	var urls []string
	for _, u := range entry.URLs {
		urls = append(urls, u.Value)
	}
	seen := map[string]bool{}
	for _, acct := range entry.Accounts {
		if acct.URL != "" {
			urls = append(urls, acct.URL)
		}
		if acct.Username != "" && !seen[strings.ToLower(acct.Username)] {
			seen[strings.ToLower(acct.Username)] = true
			emit(usernameFromProfile(acct.Shortname, acct.Username, acct.URL, avatar.ID))
		}
	}

	if len(urls) > 0 {
		f := model.New(model.TypeURL, model.SeverityMedium,
			fmt.Sprintf("Linked URLs: %d", len(urls)))
		f.Description = "Websites linked from the Gravatar profile"
		f.Source = "Gravatar"
		f.Data = map[string]any{"urls": urls}
		f.ParentID = avatar.ID
		f.LinkLabel = "links to"
		emit(f)
	}

	// Mine profile URLs for platform usernames the seed never mentioned.
	for platform, re := range profileURLPatterns {
		for _, u := range urls {
			m := re.FindStringSubmatch(u)
			if m == nil {
				continue
			}
			name := strings.ToLower(m[1])
			if seen[name] {
				continue
			}
			seen[name] = true
			emit(usernameFromProfile(platform, m[1], u, avatar.ID))
		}
	}
	return nil
}

func usernameFromProfile(platform, username, sourceURL, parentID string) model.Finding {
	f := model.New(model.TypeUsername, model.SeverityMedium, "Username Discovered: "+username)
	f.Description = "Extracted from a linked " + platform + " profile"
	f.Source = "Gravatar"
	f.SourceURL = sourceURL
	f.Data = map[string]any{
		"username":         strings.ToLower(username),
		"platform":         platform,
		"discovery_method": "profile_link",
	}
	f.ParentID = parentID
	f.LinkLabel = "uses username"
	return f
}
