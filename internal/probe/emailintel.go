package probe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/trace-osint/trace/internal/client"
	"github.com/trace-osint/trace/internal/model"
)

// EmailIntelProbe checks signup and recovery endpoints of major services
// for evidence the address is registered there. All checks are
// unauthenticated; services whose side channels require credentials are
// not probed at all.
type EmailIntelProbe struct {
	deps Deps
}

func NewEmailIntelProbe(deps Deps) *EmailIntelProbe { return &EmailIntelProbe{deps: deps} }

func (p *EmailIntelProbe) Name() string           { return "Email Intelligence" }
func (p *EmailIntelProbe) Accepts(seed Seed) bool { return seed.Kind == SeedEmail }

type serviceCheck struct {
	name  string
	check func(ctx context.Context, c *client.Client, email string) bool
}

func (p *EmailIntelProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	p.checkGoogle(ctx, email, parentID, emit)

	checks := []serviceCheck{
		{"Twitter", checkTwitter},
		{"Spotify", checkSpotify},
		{"Discord", checkDiscord},
		{"Adobe", checkAdobe},
		{"Microsoft", checkMicrosoft},
		{"GitHub", checkGitHubSignup},
		{"Pinterest", checkPinterest},
	}

	var registered []string
	for _, sc := range checks {
		if ctx.Err() != nil {
			break
		}
		if sc.check(ctx, p.deps.Client, email) {
			registered = append(registered, sc.name)
		}
		if !sleepCtx(ctx, 500*time.Millisecond) {
			break
		}
	}
	if len(registered) == 0 {
		return nil
	}

	summary := model.New(model.TypeAccount, model.SeverityMedium,
		fmt.Sprintf("Registered Services: %d", len(registered)))
	summary.Description = "Found on: " + strings.Join(registered, ", ")
	summary.Source = "Email Registration Check"
	summary.Data = map[string]any{"services": registered, "count": len(registered)}
	summary.ParentID = parentID
	summary.LinkLabel = "registered on"
	emit(summary)

	for _, name := range registered {
		switch name {
		case "Twitter", "Discord", "GitHub":
			f := model.New(model.TypeAccount, model.SeverityMedium, "Account: "+name)
			f.Description = "Email is registered on " + name
			f.Source = "Email Registration Check"
			f.Data = map[string]any{"service": name, "platform": strings.ToLower(name), "registered": true}
			f.ParentID = summary.ID
			f.LinkLabel = "account on"
			emit(f)
		}
	}
	return nil
}

func (p *EmailIntelProbe) checkGoogle(ctx context.Context, email, parentID string, emit EmitFunc) {
	outcome, body, err := p.deps.Client.GetBody(ctx,
		"https://www.google.com/s2/photos/public/"+url.PathEscape(email), nil)
	if err != nil || !outcome.OK() {
		return
	}
	if !strings.Contains(outcome.Header.Get("Content-Type"), "image") {
		return
	}
	sum := md5.Sum(body)
	f := model.New(model.TypeAccount, model.SeverityMedium, "Google Account Detected")
	f.Description = "Email is associated with a Google account with a public photo"
	f.Source = "Google OSINT"
	f.Data = map[string]any{
		"has_profile_photo": true,
		"photo_hash":        hex.EncodeToString(sum[:]), // cross-platform avatar correlation handle
	}
	f.ParentID = parentID
	f.LinkLabel = "has account"
	emit(f)
}

func checkTwitter(ctx context.Context, c *client.Client, email string) bool {
	var out struct {
		Valid bool `json:"valid"`
	}
	outcome, err := c.GetJSON(ctx,
		"https://api.twitter.com/i/users/email_available.json?email="+url.QueryEscape(email), &out, nil)
	// valid=false on the availability endpoint means "already taken".
	return err == nil && outcome.OK() && !out.Valid
}

func checkSpotify(ctx context.Context, c *client.Client, email string) bool {
	var out struct {
		Status int `json:"status"`
	}
	outcome, err := c.GetJSON(ctx,
		"https://spclient.wg.spotify.com/signup/public/v1/account?validate=1&email="+url.QueryEscape(email), &out, nil)
	return err == nil && outcome.OK() && out.Status == 20
}

func checkDiscord(ctx context.Context, c *client.Client, email string) bool {
	payload := map[string]string{"email": email}
	outcome, err := c.PostJSON(ctx, "https://discord.com/api/v9/auth/register", payload, nil, nil)
	return err == nil && outcome.StatusCode == 400
}

func checkAdobe(ctx context.Context, c *client.Client, email string) bool {
	payload := map[string]string{"username": email}
	outcome, err := c.PostJSON(ctx, "https://auth.services.adobe.com/signin/v2/users/accounts",
		payload, nil, &client.Options{Headers: map[string]string{"X-IMS-CLIENTID": "adobedotcom2"}})
	return err == nil && outcome.OK()
}

func checkMicrosoft(ctx context.Context, c *client.Client, email string) bool {
	var out struct {
		IfExistsResult int `json:"IfExistsResult"`
	}
	payload := map[string]string{"username": email}
	outcome, err := c.PostJSON(ctx, "https://login.live.com/GetCredentialType.srf", payload, &out, nil)
	return err == nil && outcome.OK() && out.IfExistsResult == 0
}

func checkGitHubSignup(ctx context.Context, c *client.Client, email string) bool {
	form := url.Values{"value": {email}}
	outcome, body, err := c.PostForm(ctx, "https://github.com/signup_check/email", form, nil)
	if err != nil || !outcome.OK() {
		return false
	}
	text := strings.ToLower(string(body))
	return strings.Contains(text, "already taken") || strings.TrimSpace(text) == "false"
}

func checkPinterest(ctx context.Context, c *client.Client, email string) bool {
	var out struct {
		ResourceResponse struct {
			Data bool `json:"data"`
		} `json:"resource_response"`
	}
	form := url.Values{"data": {fmt.Sprintf(`{"options": {"email": %q}}`, email)}}
	outcome, body, err := c.PostForm(ctx, "https://www.pinterest.com/resource/EmailExistsResource/get/", form, nil)
	if err != nil || !outcome.OK() {
		return false
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false
	}
	return out.ResourceResponse.Data
}
