package probe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-osint/trace/internal/model"
	"github.com/trace-osint/trace/internal/probe"
)

func TestDeriveUsernames(t *testing.T) {
	cases := []struct {
		email string
		want  []string
	}{
		{
			email: "john.doe@example.com",
			want:  []string{"johndoe", "john_doe", "jdoe", "john", "doe"},
		},
		{
			email: "jane_smith@example.com",
			want:  []string{"janesmith", "jane_smith", "jsmith", "jane", "smith"},
		},
		{
			email: "plainuser@example.com",
			want:  []string{"plainuser"},
		},
		{
			email: "coder99@example.com",
			want:  []string{"coder99", "coder"},
		},
		{
			email: "ab@example.com", // too short for a handle
			want:  nil,
		},
		{
			email: "no-at-sign",
			want:  nil,
		},
	}
	for _, tc := range cases {
		got := probe.DeriveUsernames(tc.email)
		for _, w := range tc.want {
			assert.Contains(t, got, w, "email %q", tc.email)
		}
		if tc.want == nil {
			assert.Empty(t, got, "email %q", tc.email)
		}
	}
}

func TestDeriveUsernames_Dedupes(t *testing.T) {
	got := probe.DeriveUsernames("doe.doe@example.com")
	seen := map[string]bool{}
	for _, name := range got {
		assert.False(t, seen[name], "duplicate candidate %q", name)
		seen[name] = true
	}
}

func TestUsernameDeriveProbe_Run(t *testing.T) {
	p := probe.NewUsernameDeriveProbe(probe.Deps{})

	var emitted []model.Finding
	emit := func(f model.Finding) { emitted = append(emitted, f) }

	err := p.Run(context.Background(), probe.EmailSeed("john.doe@example.com"), 1, "root-id", emit)
	require.NoError(t, err)
	require.Len(t, emitted, 1)

	f := emitted[0]
	assert.Equal(t, model.TypeUsername, f.Type)
	assert.Equal(t, "root-id", f.ParentID)
	names, ok := f.Data["usernames"].([]string)
	require.True(t, ok)
	assert.Contains(t, names, "johndoe")
}

func TestUsernameDeriveProbe_Run_WrongSeed(t *testing.T) {
	p := probe.NewUsernameDeriveProbe(probe.Deps{})
	err := p.Run(context.Background(), probe.UsernameSeed("jdoe"), 1, "root-id", nil)
	assert.ErrorIs(t, err, probe.ErrSeedKind)
}
