package scan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/scan"
)

func finding(t model.NodeType, sev model.Severity, title string) model.Finding {
	return model.New(t, sev, title)
}

func TestScore_Empty(t *testing.T) {
	report := scan.Score(nil)

	assert.Equal(t, 0, report.Score)
	assert.Equal(t, model.SeverityLow, report.Band)
	assert.Empty(t, report.Bonuses)
	assert.NotEmpty(t, report.Summary)
}

func TestScore_BucketCaps(t *testing.T) {
	// Ten criticals are worth 250 raw points but the bucket caps at 50.
	var findings []model.Finding
	for range 10 {
		findings = append(findings, finding(model.TypeURL, model.SeverityCritical, "Secret Exposed"))
	}
	report := scan.Score(findings)

	assert.Equal(t, 50, report.Buckets["critical"])

	// Volume of LOW findings can never push the score past its cap.
	findings = nil
	for range 40 {
		findings = append(findings, finding(model.TypeURL, model.SeverityLow, "Archived Page"))
	}
	report = scan.Score(findings)
	assert.Equal(t, 5, report.Score)
	assert.Equal(t, model.SeverityLow, report.Band)
}

func TestScore_PasswordBreachBonus(t *testing.T) {
	findings := []model.Finding{
		finding(model.TypePassword, model.SeverityCritical, "Plaintext Passwords Captured"),
		finding(model.TypeBreach, model.SeverityHigh, "Found in 2 Data Breach(es)"),
	}
	report := scan.Score(findings)

	// 25 critical + 10 high + 15 bonus.
	assert.Equal(t, 50, report.Score)
	require.Len(t, report.Bonuses, 1)
	assert.Equal(t, 15, report.Bonuses[0].Points)
	assert.Equal(t, model.SeverityHigh, report.Band)
}

func TestScore_NameAndLocationBonus(t *testing.T) {
	findings := []model.Finding{
		finding(model.TypePersonalInfo, model.SeverityHigh, "Name: Jane Roe"),
		finding(model.TypeLocation, model.SeverityMedium, "Probable Location: Portland"),
	}
	report := scan.Score(findings)

	var points int
	for _, b := range report.Bonuses {
		points += b.Points
	}
	assert.Equal(t, 5, points)
}

func TestScore_PhoneAndAddressFromData(t *testing.T) {
	f := finding(model.TypePersonalInfo, model.SeverityMedium, "Contact Details Leaked")
	f.Data = map[string]any{"phone_number": "555", "home_address": "1 Main St"}
	report := scan.Score([]model.Finding{f})

	var reasons []string
	for _, b := range report.Bonuses {
		reasons = append(reasons, b.Reason)
	}
	assert.Contains(t, reasons, "Phone number exposed")
	assert.Contains(t, reasons, "Home address signals present")
}

func TestScore_AccountFootprintBonus(t *testing.T) {
	var findings []model.Finding
	for range 11 {
		findings = append(findings, finding(model.TypeAccount, model.SeverityMedium, "Account Found"))
	}
	report := scan.Score(findings)

	require.Len(t, report.Bonuses, 1)
	assert.Equal(t, "Large linkable account footprint", report.Bonuses[0].Reason)
}

func TestScore_ClampedAt100(t *testing.T) {
	var findings []model.Finding
	for range 5 {
		findings = append(findings, finding(model.TypePassword, model.SeverityCritical, "Password Exposed"))
		findings = append(findings, finding(model.TypeBreach, model.SeverityHigh, "Breach: X"))
		findings = append(findings, finding(model.TypeAccount, model.SeverityMedium, "Account Found"))
	}
	f := finding(model.TypePersonalInfo, model.SeverityHigh, "Phone Number Posted")
	f.Data = map[string]any{"address": "somewhere"}
	findings = append(findings, f)

	report := scan.Score(findings)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, model.SeverityCritical, report.Band)
}

func TestScore_Bands(t *testing.T) {
	// 2 criticals = 50 -> HIGH band boundary.
	findings := []model.Finding{
		finding(model.TypeBreach, model.SeverityCritical, "Breach: A"),
		finding(model.TypeBreach, model.SeverityCritical, "Breach: B"),
	}
	assert.Equal(t, model.SeverityHigh, scan.Score(findings).Band)

	// 3 highs = 30 -> MEDIUM band boundary.
	findings = []model.Finding{
		finding(model.TypeURL, model.SeverityHigh, "Documents: 2 Result(s)"),
		finding(model.TypeURL, model.SeverityHigh, "Documents: 3 Result(s)"),
		finding(model.TypeAccount, model.SeverityHigh, "Accounts Linked"),
	}
	assert.Equal(t, model.SeverityMedium, scan.Score(findings).Band)
}
