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

// SocialDeepProbe digs into one confirmed platform account: post history,
// bio fields and activity traces that plain existence checks never see.
// Only reddit, twitter (via mirror) and github are supported.
type SocialDeepProbe struct {
	deps Deps
}

func NewSocialDeepProbe(deps Deps) *SocialDeepProbe { return &SocialDeepProbe{deps: deps} }

func (p *SocialDeepProbe) Name() string { return "Social Deep Dive" }

func (p *SocialDeepProbe) Accepts(seed Seed) bool {
	if seed.Kind != SeedPlatformUser {
		return false
	}
	switch seed.Platform {
	case "reddit", "twitter", "github":
		return true
	}
	return false
}

// locationSubreddits maps city and country subreddits to place names; a
// user commenting there repeatedly probably lives there.
var locationSubreddits = map[string]string{
	"nyc": "New York City", "losangeles": "Los Angeles", "chicago": "Chicago",
	"seattle": "Seattle", "boston": "Boston", "sanfrancisco": "San Francisco",
	"austin": "Austin", "denver": "Denver", "portland": "Portland",
	"toronto": "Toronto", "vancouver": "Vancouver", "london": "London",
	"melbourne": "Melbourne", "sydney": "Sydney", "berlin": "Berlin",
	"india": "India", "unitedkingdom": "United Kingdom", "canada": "Canada",
	"australia": "Australia", "singapore": "Singapore",
}

var (
	phoneRe   = regexp.MustCompile(`\+?\d[\d\s().-]{8,14}\d`)
	mentionRe = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_]{3,30})`)
	bodyURLRe = regexp.MustCompile(`https?://[^\s)\]"'<>]+`)

	nitterBioRe      = regexp.MustCompile(`(?s)class="profile-bio"[^>]*>\s*<p[^>]*>(.*?)</p>`)
	nitterLocationRe = regexp.MustCompile(`(?s)class="profile-location"[^>]*>.*?<span[^>]*>([^<]+)</span>`)
	nitterWebsiteRe  = regexp.MustCompile(`class="profile-website"[^>]*>(?s:.*?)href="([^"]+)"`)
	htmlTagRe        = regexp.MustCompile(`<[^>]+>`)
)

var nitterInstances = []string{
	"https://nitter.net",
	"https://nitter.privacydev.net",
}

func (p *SocialDeepProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	username := strings.TrimSpace(seed.Username)
	switch seed.Platform {
	case "reddit":
		p.diveReddit(ctx, username, parentID, emit)
	case "twitter":
		p.diveTwitter(ctx, username, parentID, emit)
	case "github":
		p.diveGitHub(ctx, username, parentID, emit)
	}
	return nil
}

// ── reddit ──────────────────────────────────────────────────────────────

func (p *SocialDeepProbe) diveReddit(ctx context.Context, username, parentID string, emit EmitFunc) {
	var about struct {
		Data struct {
			LinkKarma    int     `json:"link_karma"`
			CommentKarma int     `json:"comment_karma"`
			CreatedUTC   float64 `json:"created_utc"`
		} `json:"data"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://www.reddit.com/user/"+username+"/about.json", &about, nil)
	if err != nil {
		p.deps.Logger.Debug("reddit unreachable", zap.Error(err))
		return
	}
	if !outcome.OK() {
		return
	}

	activity := model.New(model.TypeSocial, model.SeverityMedium, "Reddit Activity: "+username)
	activity.Description = fmt.Sprintf("%d link karma, %d comment karma",
		about.Data.LinkKarma, about.Data.CommentKarma)
	activity.Source = "Reddit"
	activity.SourceURL = "https://reddit.com/user/" + username
	activity.Data = map[string]any{
		"platform":      "reddit",
		"username":      username,
		"link_karma":    about.Data.LinkKarma,
		"comment_karma": about.Data.CommentKarma,
	}
	activity.ParentID = parentID
	activity.LinkLabel = "active on"
	emit(activity)

	var comments struct {
		Data struct {
			Children []struct {
				Data struct {
					Subreddit string `json:"subreddit"`
					Body      string `json:"body"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	outcome, err = p.deps.Client.GetJSON(ctx,
		"https://www.reddit.com/user/"+username+"/comments.json?limit=25", &comments, nil)
	if err != nil || !outcome.OK() {
		return
	}

	subredditHits := map[string]int{}
	mentionHits := map[string]int{}
	var phones, urls []string
	phoneSeen, urlSeen := map[string]bool{}, map[string]bool{}
	for _, child := range comments.Data.Children {
		sub := strings.ToLower(child.Data.Subreddit)
		if _, known := locationSubreddits[sub]; known {
			subredditHits[sub]++
		}
		for _, m := range phoneRe.FindAllString(child.Data.Body, -1) {
			if countDigits(m) >= 10 && !phoneSeen[m] {
				phoneSeen[m] = true
				phones = append(phones, m)
			}
		}
		for _, m := range mentionRe.FindAllStringSubmatch(child.Data.Body, -1) {
			if name := strings.ToLower(m[1]); name != strings.ToLower(username) {
				mentionHits[name]++
			}
		}
		for _, m := range bodyURLRe.FindAllString(child.Data.Body, -1) {
			if !urlSeen[m] && len(urls) < 10 {
				urlSeen[m] = true
				urls = append(urls, m)
			}
		}
	}

	for sub, hits := range subredditHits {
		if hits < 2 {
			continue // one drive-by comment is not residency
		}
		place := locationSubreddits[sub]
		f := model.New(model.TypeLocation, model.SeverityMedium, "Location Signal: "+place)
		f.Description = fmt.Sprintf("Repeated activity in r/%s (%d comments)", sub, hits)
		f.Source = "Reddit"
		f.Data = map[string]any{
			"location":        place,
			"location_source": "reddit_activity",
			"comment_count":   hits,
		}
		f.ParentID = activity.ID
		f.LinkLabel = "posts from"
		emit(f)
	}
	var contacts []string
	for name, hits := range mentionHits {
		if hits >= 2 && len(contacts) < 5 {
			contacts = append(contacts, name)
		}
	}
	if len(contacts) > 0 {
		f := model.New(model.TypeSocial, model.SeverityLow,
			fmt.Sprintf("Frequent Contacts: %d", len(contacts)))
		f.Description = "Users repeatedly mentioned in public comments"
		f.Source = "Reddit"
		f.Data = map[string]any{"contacts": contacts}
		f.ParentID = activity.ID
		f.LinkLabel = "interacts with"
		emit(f)
	}
	if len(phones) > 0 {
		f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Phone Number Posted")
		f.Description = "A phone-shaped number appears in public comments"
		f.Source = "Reddit"
		f.Data = map[string]any{"phone_count": len(phones), "phone": phones[0]}
		f.ParentID = activity.ID
		f.LinkLabel = "posted phone"
		emit(f)
	}
	if len(urls) > 0 {
		f := model.New(model.TypeURL, model.SeverityLow,
			fmt.Sprintf("Links Shared: %d", len(urls)))
		f.Description = "URLs posted in public comments"
		f.Source = "Reddit"
		f.Data = map[string]any{"urls": urls}
		f.ParentID = activity.ID
		f.LinkLabel = "shared"
		emit(f)
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// ── twitter (read-only mirror) ──────────────────────────────────────────

func (p *SocialDeepProbe) diveTwitter(ctx context.Context, username, parentID string, emit EmitFunc) {
	var page string
	for _, instance := range nitterInstances {
		outcome, body, err := p.deps.Client.GetBody(ctx, instance+"/"+username, nil)
		if err == nil && outcome.OK() {
			page = string(body)
			break
		}
	}
	if page == "" {
		return
	}

	acct := model.New(model.TypeSocial, model.SeverityMedium, "Twitter Profile: @"+username)
	acct.Description = "Profile content retrieved via a read-only mirror"
	acct.Source = "Twitter"
	acct.SourceURL = "https://twitter.com/" + username
	acct.Data = map[string]any{"platform": "twitter", "username": username}
	acct.ParentID = parentID
	acct.LinkLabel = "profile"
	emit(acct)

	if m := nitterBioRe.FindStringSubmatch(page); m != nil {
		bio := strings.TrimSpace(htmlTagRe.ReplaceAllString(m[1], ""))
		if bio != "" {
			f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Twitter Bio")
			f.Description = trim(bio, 180)
			f.Source = "Twitter"
			f.Data = map[string]any{"bio": bio}
			f.ParentID = acct.ID
			f.LinkLabel = "describes self"
			emit(f)
		}
	}
	if m := nitterLocationRe.FindStringSubmatch(page); m != nil {
		loc := strings.TrimSpace(m[1])
		if loc != "" {
			f := model.New(model.TypeLocation, model.SeverityMedium, "Location: "+loc)
			f.Description = "Location field on the Twitter profile"
			f.Source = "Twitter"
			f.Data = map[string]any{"location": loc, "location_source": "social_profile"}
			f.ParentID = acct.ID
			f.LinkLabel = "located in"
			emit(f)
		}
	}
	if m := nitterWebsiteRe.FindStringSubmatch(page); m != nil {
		f := model.New(model.TypeURL, model.SeverityLow, "Website: "+trim(m[1], 60))
		f.Description = "Website linked from the Twitter profile"
		f.Source = "Twitter"
		f.Data = map[string]any{"url": m[1]}
		f.ParentID = acct.ID
		f.LinkLabel = "links to"
		emit(f)
	}
}

// ── github avatar correlation ───────────────────────────────────────────

func (p *SocialDeepProbe) diveGitHub(ctx context.Context, username, parentID string, emit EmitFunc) {
	outcome, body, err := p.deps.Client.GetBody(ctx,
		"https://github.com/"+username+".png?size=200", nil)
	if err != nil || !outcome.OK() || len(body) == 0 {
		return
	}
	sum := md5.Sum(body)
	f := model.New(model.TypeSocial, model.SeverityLow, "GitHub Avatar Fingerprint")
	f.Description = "Avatar hash for matching the same photo on other platforms"
	f.Source = "GitHub"
	f.Data = map[string]any{
		"platform":    "github",
		"username":    username,
		"avatar_hash": hex.EncodeToString(sum[:]),
	}
	f.ParentID = parentID
	f.LinkLabel = "avatar"
	emit(f)
}
