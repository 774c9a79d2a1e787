package probe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

func TestDataBrokerProbe_Run(t *testing.T) {
	p := probe.NewDataBrokerProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	seed := probe.ProfileSeed(probe.Profile{Email: "Jane.Doe@example.com"})
	require.NoError(t, p.Run(context.Background(), seed, 3, "root-id", emit))
	require.NotEmpty(t, emitted)

	warning := emitted[0]
	assert.Equal(t, model.TypeDataBroker, warning.Type)
	assert.Equal(t, "Data Broker Exposure Likely", warning.Title)
	assert.Equal(t, "root-id", warning.ParentID)

	var brokers, checklists int
	for _, f := range emitted[1:] {
		assert.Equal(t, warning.ID, f.ParentID, "detail findings parent on the warning")
		switch {
		case f.Title == "Opt-Out Checklist":
			checklists++
			optOuts, ok := f.Data["opt_outs"].([]map[string]any)
			require.True(t, ok)
			assert.NotEmpty(t, optOuts)
		case f.Severity == model.SeverityHigh:
			brokers++
			assert.NotEmpty(t, f.Data["opt_out"])
			searchURL, _ := f.Data["search_url"].(string)
			assert.Contains(t, searchURL, "jane.doe%40example.com",
				"broker search link carries the encoded address")
			assert.Equal(t, searchURL, f.SourceURL)
		}
	}
	assert.Equal(t, 1, checklists)
	assert.Greater(t, brokers, 0)
}

func TestDataBrokerProbe_Run_NoEmailSkipsSearchLinks(t *testing.T) {
	p := probe.NewDataBrokerProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	require.NoError(t, p.Run(context.Background(), probe.ProfileSeed(probe.Profile{}), 3, "root-id", emit))
	require.NotEmpty(t, emitted)
	for _, f := range emitted {
		assert.NotContains(t, f.Data, "search_url")
	}
}

func TestDataBrokerProbe_Run_WrongSeed(t *testing.T) {
	p := probe.NewDataBrokerProbe(probe.Deps{})
	err := p.Run(context.Background(), probe.EmailSeed("a@b.io"), 3, "", nil)
	assert.ErrorIs(t, err, probe.ErrSeedKind)
}
