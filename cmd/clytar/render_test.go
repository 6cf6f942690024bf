package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clytar/clytar-backend/internal/projects/domain"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
)

func TestRenderProject(t *testing.T) {
	p := &domain.Project{
		ID:          "clytar-12345-6789",
		Title:       "Q2 Launch",
		ContentType: domain.ContentBlog,
		Objective:   "announce feature",
		Audience:    "SMB owners",
		Status:      domain.StatusInsightsReady,
		Insights: &domain.Insights{
			TrendingKeywords: []string{"q2 launch", "automation"},
		},
		Version: 3,
	}
	out := renderProject(p)
	assert.Contains(t, out, "Q2 Launch")
	assert.Contains(t, out, "insights_ready")
	assert.Contains(t, out, "automation")
	assert.Contains(t, out, "v3")

	p.Status = domain.StatusScheduled
	p.DraftFinal = "# Q2 Launch\n\nbody"
	p.Schedule = &domain.Schedule{
		Platform: "linkedin", Category: "product", PublishNow: true,
		ScheduledAt: time.Now(), AdditionalPlatforms: []string{"twitter"},
	}
	out = renderProject(p)
	assert.NotContains(t, out, "automation")
	assert.Contains(t, out, "# Q2 Launch")
	assert.Contains(t, out, "Publishing to linkedin (product) at now, also twitter")
}

func TestRenderUser(t *testing.T) {
	out := renderUser(&usersdomain.User{Email: "a@clytar.io", Role: usersdomain.RoleAdmin, Plan: usersdomain.PlanPremium})
	assert.Contains(t, out, "a@clytar.io")
	assert.Contains(t, out, "admin · premium")
	assert.Equal(t, "", renderList("Empty", nil))
}

func TestReadDraft(t *testing.T) {
	_, err := readDraft(nil, "")
	assert.Error(t, err)

	text, err := readDraft(strings.NewReader("# From stdin\n"), "-")
	require.NoError(t, err)
	assert.Equal(t, "# From stdin\n", text)

	path := filepath.Join(t.TempDir(), "draft.md")
	require.NoError(t, os.WriteFile(path, []byte("# From file"), 0o600))
	text, err = readDraft(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "# From file", text)
}

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"signup", "signin", "signout", "whoami", "project", "admin"})

	sub, _, err := rootCmd.Find([]string{"project", "schedule"})
	require.NoError(t, err)
	assert.NotNil(t, sub.Flags().Lookup("also"))
}

func TestWhoami_NotSignedIn(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("GENERATION_PROVIDER", "template")
	t.Setenv("DB_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	sessionPath = filepath.Join(t.TempDir(), "session.toml")
	t.Cleanup(func() { sessionPath = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"whoami"})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, errNotSignedIn)
}
