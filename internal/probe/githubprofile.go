package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// GitHubProfileProbe walks a GitHub account in depth: profile fields,
// organizations, repository languages, commit-author emails leaked in
// public history, and a coarse timezone inference from activity hours.
type GitHubProfileProbe struct {
	deps Deps
}

func NewGitHubProfileProbe(deps Deps) *GitHubProfileProbe {
	return &GitHubProfileProbe{deps: deps}
}

func (p *GitHubProfileProbe) Name() string           { return "GitHub Profile" }
func (p *GitHubProfileProbe) Accepts(seed Seed) bool { return seed.Kind == SeedUsername }

func (p *GitHubProfileProbe) options() *client.Options {
	if p.deps.GitHubToken == "" {
		return nil
	}
	return &client.Options{BearerToken: p.deps.GitHubToken}
}

type githubUser struct {
	Login           string `json:"login"`
	Name            string `json:"name"`
	Company         string `json:"company"`
	Blog            string `json:"blog"`
	Location        string `json:"location"`
	Email           string `json:"email"`
	Bio             string `json:"bio"`
	TwitterUsername string `json:"twitter_username"`
	PublicRepos     int    `json:"public_repos"`
	Followers       int    `json:"followers"`
	CreatedAt       string `json:"created_at"`
	HTMLURL         string `json:"html_url"`
}

func (p *GitHubProfileProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	username := strings.TrimSpace(seed.Username)

	var user githubUser
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/users/"+username, &user, p.options())
	if err != nil {
		p.deps.Logger.Debug("github profile unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() || user.Login == "" {
		return nil
	}

	acct := model.New(model.TypeAccount, model.SeverityMedium, "GitHub: "+user.Login)
	acct.Description = fmt.Sprintf("%d public repos, %d followers", user.PublicRepos, user.Followers)
	acct.Source = "GitHub"
	acct.SourceURL = user.HTMLURL
	acct.Data = map[string]any{
		"platform":     "github",
		"username":     user.Login,
		"url":          user.HTMLURL,
		"public_repos": user.PublicRepos,
		"followers":    user.Followers,
		"created_at":   user.CreatedAt,
	}
	acct.ParentID = parentID
	acct.LinkLabel = "profile"
	emit(acct)

	p.emitProfileFields(user, acct.ID, emit)

	if depth >= 2 {
		p.emitOrgs(ctx, user.Login, acct.ID, emit)
		repos := p.emitLanguages(ctx, user.Login, acct.ID, emit)
		p.emitCommitEmails(ctx, user.Login, repos, acct.ID, emit)
		p.emitTimezone(ctx, user.Login, acct.ID, emit)
	}
	return nil
}

func (p *GitHubProfileProbe) emitProfileFields(user githubUser, parentID string, emit EmitFunc) {
	if user.Name != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Name: "+user.Name)
		f.Description = "Real name on the GitHub profile"
		f.Source = "GitHub"
		f.Data = map[string]any{"name": user.Name, "source": "github"}
		f.ParentID = parentID
		f.LinkLabel = "named"
		emit(f)
	}
	if user.Location != "" {
		f := model.New(model.TypeLocation, model.SeverityMedium, "Location: "+user.Location)
		f.Description = "Location on the GitHub profile"
		f.Source = "GitHub"
		f.Data = map[string]any{"location": user.Location, "location_source": "github"}
		f.ParentID = parentID
		f.LinkLabel = "located in"
		emit(f)
	}
	if user.Email != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Public Email on Profile")
		f.Description = "An email address is published directly on the profile"
		f.Source = "GitHub"
		f.Data = map[string]any{"exposed_email": model.MaskEmail(user.Email), "source": "github"}
		f.ParentID = parentID
		f.LinkLabel = "exposes email"
		emit(f)
	}
	if user.Company != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityMedium, "Employer: "+user.Company)
		f.Description = "Company field on the GitHub profile"
		f.Source = "GitHub"
		f.Data = map[string]any{"company": user.Company}
		f.ParentID = parentID
		f.LinkLabel = "works at"
		emit(f)
	}
	if user.TwitterUsername != "" {
		f := model.New(model.TypeUsername, model.SeverityMedium,
			"Username Discovered: "+user.TwitterUsername)
		f.Description = "Twitter handle linked from the GitHub profile"
		f.Source = "GitHub"
		f.Data = map[string]any{
			"username":         user.TwitterUsername,
			"platform":         "twitter",
			"discovery_method": "profile_link",
		}
		f.ParentID = parentID
		f.LinkLabel = "links to"
		emit(f)
	}
	if user.Blog != "" {
		f := model.New(model.TypeURL, model.SeverityLow, "Website: "+trim(user.Blog, 60))
		f.Description = "Website linked from the GitHub profile"
		f.Source = "GitHub"
		f.Data = map[string]any{"url": user.Blog}
		f.ParentID = parentID
		f.LinkLabel = "links to"
		emit(f)
	}
	if user.Bio != "" {
		f := model.New(model.TypePersonalInfo, model.SeverityLow, "GitHub Bio")
		f.Description = trim(user.Bio, 180)
		f.Source = "GitHub"
		f.Data = map[string]any{"bio": user.Bio}
		f.ParentID = parentID
		f.LinkLabel = "describes self"
		emit(f)
	}
}

func (p *GitHubProfileProbe) emitOrgs(ctx context.Context, username, parentID string, emit EmitFunc) {
	var orgs []struct {
		Login string `json:"login"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/users/"+username+"/orgs", &orgs, p.options())
	if err != nil || !outcome.OK() || len(orgs) == 0 {
		return
	}
	names := make([]string, 0, len(orgs))
	for _, o := range orgs {
		names = append(names, o.Login)
	}
	f := model.New(model.TypeAccount, model.SeverityMedium,
		fmt.Sprintf("Member of %d Organization(s)", len(orgs)))
	f.Description = "Public GitHub organizations: " + strings.Join(names, ", ")
	f.Source = "GitHub"
	f.Data = map[string]any{"organizations": names}
	f.ParentID = parentID
	f.LinkLabel = "member of"
	emit(f)
}

type githubRepo struct {
	FullName string `json:"full_name"`
	Language string `json:"language"`
	Fork     bool   `json:"fork"`
}

func (p *GitHubProfileProbe) emitLanguages(ctx context.Context, username, parentID string, emit EmitFunc) []githubRepo {
	var repos []githubRepo
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/users/"+username+"/repos?sort=updated&per_page=30", &repos, p.options())
	if err != nil || !outcome.OK() || len(repos) == 0 {
		return nil
	}

	counts := map[string]int{}
	for _, r := range repos {
		if !r.Fork && r.Language != "" {
			counts[r.Language]++
		}
	}
	if len(counts) > 0 {
		type langCount struct {
			lang string
			n    int
		}
		ranked := make([]langCount, 0, len(counts))
		for l, n := range counts {
			ranked = append(ranked, langCount{l, n})
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].n > ranked[j].n })
		top := make([]string, 0, 3)
		for _, lc := range ranked[:min(len(ranked), 3)] {
			top = append(top, lc.lang)
		}
		f := model.New(model.TypePersonalInfo, model.SeverityLow,
			"Primary Languages: "+strings.Join(top, ", "))
		f.Description = "Programming languages across public repositories"
		f.Source = "GitHub"
		f.Data = map[string]any{"languages": top}
		f.ParentID = parentID
		f.LinkLabel = "writes"
		emit(f)
	}
	return repos
}

var noreplyEmail = "users.noreply.github.com"

func (p *GitHubProfileProbe) emitCommitEmails(ctx context.Context, username string, repos []githubRepo, parentID string, emit EmitFunc) {
	seen := map[string]bool{}
	for _, repo := range repos[:min(len(repos), 5)] {
		if repo.Fork {
			continue
		}
		var commits []struct {
			Commit struct {
				Author struct {
					Email string `json:"email"`
					Name  string `json:"name"`
				} `json:"author"`
			} `json:"commit"`
		}
		outcome, err := p.deps.Client.GetJSON(ctx,
			fmt.Sprintf("https://api.github.com/repos/%s/commits?author=%s&per_page=20", repo.FullName, username),
			&commits, p.options())
		if err != nil || !outcome.OK() {
			continue
		}
		for _, c := range commits {
			email := strings.ToLower(c.Commit.Author.Email)
			if email == "" || strings.HasSuffix(email, noreplyEmail) || seen[email] {
				continue
			}
			seen[email] = true
			f := model.New(model.TypePersonalInfo, model.SeverityHigh, "Commit Email Exposed")
			f.Description = "A real email address appears in public commit metadata of " + repo.FullName
			f.Source = "GitHub"
			f.Data = map[string]any{
				"exposed_email": model.MaskEmail(email),
				"author_name":   c.Commit.Author.Name,
				"repo":          repo.FullName,
				"remediation":   "Set a noreply commit email and rewrite published history if needed",
			}
			f.ParentID = parentID
			f.LinkLabel = "leaks email"
			emit(f)
			if len(seen) >= 3 {
				return
			}
		}
	}
}

// emitTimezone bins public event hours (UTC) and maps the active band to a
// coarse longitude region. Weak signal, reported at LOW severity.
func (p *GitHubProfileProbe) emitTimezone(ctx context.Context, username, parentID string, emit EmitFunc) {
	var events []struct {
		CreatedAt time.Time `json:"created_at"`
	}
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://api.github.com/users/"+username+"/events/public?per_page=100", &events, p.options())
	if err != nil || !outcome.OK() || len(events) < 20 {
		return
	}

	var hours [24]int
	for _, ev := range events {
		hours[ev.CreatedAt.UTC().Hour()]++
	}
	peak, peakCount := 0, 0
	for h, n := range hours {
		if n > peakCount {
			peak, peakCount = h, n
		}
	}

	// Assume the peak falls mid-afternoon local time.
	offset := 15 - peak
	for offset > 12 {
		offset -= 24
	}
	for offset < -12 {
		offset += 24
	}
	var region string
	switch {
	case offset >= -9 && offset <= -4:
		region = "Americas"
	case offset >= -1 && offset <= 3:
		region = "Europe / Africa"
	case offset >= 4 && offset <= 6:
		region = "Middle East / South Asia"
	case offset >= 7 && offset <= 12:
		region = "East Asia / Oceania"
	default:
		return
	}

	f := model.New(model.TypeLocation, model.SeverityLow,
		fmt.Sprintf("Probable Timezone: UTC%+d", offset))
	f.Description = "Inferred from the hour-of-day distribution of public activity"
	f.Source = "GitHub"
	f.Data = map[string]any{
		"utc_offset":  offset,
		"region":      region,
		"sample_size": len(events),
		"confidence":  "low",
	}
	f.ParentID = parentID
	f.LinkLabel = "active during"
	emit(f)
}
