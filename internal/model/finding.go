// Package model defines the finding graph emitted by a scan: typed nodes
// linked to the parent finding that led to their discovery.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity ranks how dangerous a single finding is on its own.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Weight returns the ordering weight of a severity; unknown values rank
// below LOW so malformed input never inflates a score.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// NodeType classifies what kind of artifact a finding describes.
type NodeType string

const (
	TypeRoot         NodeType = "ROOT"
	TypeBreach       NodeType = "BREACH"
	TypeAccount      NodeType = "ACCOUNT"
	TypeUsername     NodeType = "USERNAME"
	TypePersonalInfo NodeType = "PERSONAL_INFO"
	TypeLocation     NodeType = "LOCATION"
	TypeURL          NodeType = "URL"
	TypeDomain       NodeType = "DOMAIN"
	TypePassword     NodeType = "PASSWORD"
	TypeSocial       NodeType = "SOCIAL"
	TypeDataBroker   NodeType = "DATA_BROKER"
)

// Finding is one node in the scan graph. ParentID references an earlier
// finding in the same scan; the root finding has none. Data holds
// source-specific detail and is restricted to JSON-serializable values.
type Finding struct {
	ID          string         `json:"id"`
	Type        NodeType       `json:"type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	SourceURL   string         `json:"source_url,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	LinkLabel   string         `json:"link_label,omitempty"`
}

// New builds a finding with a fresh ID and UTC timestamp.
func New(t NodeType, sev Severity, title string) Finding {
	return Finding{
		ID:        uuid.NewString(),
		Type:      t,
		Severity:  sev,
		Title:     title,
		Timestamp: time.Now().UTC(),
	}
}

// MaskEmail renders an address safe for titles, logs and API responses:
// "ab@x.io" -> "a***@x.io", "daniel@x.io" -> "d***l@x.io".
// The raw address must never appear outside the scan engine itself.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	r := []rune(local)
	if len(r) <= 2 {
		return fmt.Sprintf("%c***@%s", r[0], domain)
	}
	return fmt.Sprintf("%c***%c@%s", r[0], r[len(r)-1], domain)
}

// ValidEmail is a light syntactic check on the scan seed. Verification of
// ownership happens upstream; this only rejects garbage before probes run.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return len(email) <= 254
}
