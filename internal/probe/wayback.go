package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-osint/trace/internal/model"
)

// WaybackProbe checks the Internet Archive CDX index for snapshots of
// discovered URLs. Deleted profiles and old personal sites often survive
// there long after the original is gone.
type WaybackProbe struct {
	deps Deps
}

func NewWaybackProbe(deps Deps) *WaybackProbe { return &WaybackProbe{deps: deps} }

func (p *WaybackProbe) Name() string           { return "Wayback Machine" }
func (p *WaybackProbe) Accepts(seed Seed) bool { return seed.Kind == SeedURL }

func (p *WaybackProbe) Run(ctx context.Context, seed Seed, depth int, parentID string, emit EmitFunc) error {
	if !p.Accepts(seed) {
		return ErrSeedKind
	}
	target := strings.TrimSpace(seed.URL)
	if target == "" {
		return nil
	}

	// Row 0 is the CDX header; snapshot rows are [timestamp, original,
	// statuscode, mimetype].
	var rows [][]string
	outcome, err := p.deps.Client.GetJSON(ctx,
		"https://web.archive.org/cdx/search/cdx?output=json&limit=10&fl=timestamp,original,statuscode,mimetype&url="+url.QueryEscape(target),
		&rows, nil)
	if err != nil {
		p.deps.Logger.Debug("wayback unreachable", zap.Error(err))
		return nil
	}
	if !outcome.OK() || len(rows) < 2 {
		return nil
	}

	snapshots := rows[1:]
	first, last := snapshots[0], snapshots[len(snapshots)-1]
	f := model.New(model.TypeURL, model.SeverityMedium,
		fmt.Sprintf("Archived: %d Snapshot(s)", len(snapshots)))
	f.Description = "Internet Archive holds historical copies of " + trim(target, 80)
	f.Source = "Wayback Machine"
	f.SourceURL = "https://web.archive.org/web/*/" + target
	f.Data = map[string]any{
		"url":            target,
		"snapshot_count": len(snapshots),
		"earliest":       cdxField(first, 0),
		"latest":         cdxField(last, 0),
		"remediation":    "Archived copies persist after deletion; request exclusion if sensitive",
	}
	f.ParentID = parentID
	f.LinkLabel = "archived"
	emit(f)
	return nil
}

func cdxField(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
