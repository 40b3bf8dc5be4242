package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/pipeline"
	"jobintel-engine/internal/secrets"
)

type env struct {
	t       *testing.T
	cfgPath string
	dataDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{t: t, cfgPath: filepath.Join(dir, "config.yml"), dataDir: filepath.Join(dir, "data")}
	t.Setenv("JOBINTEL_CONFIG", "")
	t.Setenv("JOBINTEL_DATA_DIR", e.dataDir)
	t.Setenv("JOBINTEL_LOG_LEVEL", "error")

	out, err := e.run("", "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, "wrote")
	return e
}

func (e *env) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePostings(t *testing.T) string {
	t.Helper()
	posted := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	desc := strings.Repeat("Build and operate distributed Go services for payments. ", 12)
	ps := []map[string]any{
		{
			"source": "remotive", "source_id": "1", "url": "https://remotive.com/jobs/1",
			"title": "Senior Go Engineer", "company": "Acme", "description": desc,
			"location": "Berlin, Germany", "remote": true, "posted_at": posted,
			"salary_min": 90000, "salary_max": 120000,
		},
		{
			"source": "weworkremotely", "source_id": "2", "url": "https://weworkremotely.com/jobs/2",
			"title": "Python Developer", "company": "Globex", "description": desc,
			"location": "Paris, France", "posted_at": posted,
		},
		{"source": "remotive", "source_id": "3"},
	}
	b, err := json.Marshal(ps)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "postings.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "engine dev"))
}

func TestConfigInitAndValidate(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = e.run("", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	require.NoError(t, os.WriteFile(e.cfgPath, []byte("dedup:\n  title_threshold: 2\n"), 0o644))
	out, err = e.run("", "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "dedup.title_threshold")

	_, err = e.run("", "audit")
	require.Error(t, err, "commands refuse an invalid config")

	_, err = e.run("", "config", "init", "--force")
	require.NoError(t, err)
	_, err = os.Stat(e.cfgPath + ".bak")
	require.NoError(t, err)
	_, err = e.run("", "config", "validate")
	require.NoError(t, err)
}

func TestProcessIsIdempotent(t *testing.T) {
	e := newEnv(t)
	file := writePostings(t)

	out, err := e.run("", "process", file)
	require.NoError(t, err)
	assert.Contains(t, out, "new=2 duplicate=0 updated=0 unchanged=0 failed=1")
	assert.Contains(t, out, "failed remotive/3")

	out, err = e.run("", "process", file)
	require.NoError(t, err)
	assert.Contains(t, out, "new=0 duplicate=0 updated=0 unchanged=2 failed=1")

	out, err = e.run("", "rescore")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 2, changed 0")
}

func TestProcessFromStdin(t *testing.T) {
	e := newEnv(t)
	b, err := os.ReadFile(writePostings(t))
	require.NoError(t, err)

	out, err := e.run(string(b), "--json", "process", "-")
	require.NoError(t, err)
	var rep struct {
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.Counts["new"])

	_, err = e.run("not json", "process", "-")
	require.Error(t, err)
}

func TestPrefsAndMatch(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "process", writePostings(t))
	require.NoError(t, err)

	_, err = e.run("", "match", "alice")
	require.ErrorIs(t, err, errNoPreference)

	_, err = e.run("", "prefs", "set", "alice", "--location", "Berlin")
	require.Error(t, err, "a preference needs a keyword")

	_, err = e.run("", "prefs", "set", "alice", "--keywords", "go,kubernetes", "--exclude", "python", "--salary-min", "80000")
	require.NoError(t, err)

	out, err := e.run("", "prefs", "get", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_id": "alice"`)
	assert.Contains(t, out, `"salary_min": 80000`)
	assert.Contains(t, out, `"notification_frequency": "daily"`)

	out, err = e.run("", "match", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Senior Go Engineer")
	assert.NotContains(t, out, "Python Developer")

	out, err = e.run("", "--json", "match", "alice", "--limit", "1")
	require.NoError(t, err)
	var ranking struct {
		Results []struct {
			Posting struct {
				Title string `json:"title"`
			} `json:"posting"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ranking))
	require.Len(t, ranking.Results, 1)
	assert.Equal(t, "Senior Go Engineer", ranking.Results[0].Posting.Title)

	out, err = e.run("", "prefs", "delete", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")
	_, err = e.run("", "prefs", "delete", "alice")
	require.ErrorIs(t, err, errNoPreference)
}

func TestAudit(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "process", writePostings(t))
	require.NoError(t, err)

	out, err := e.run("", "--json", "audit", "--top", "0")
	require.NoError(t, err)
	var rep auditReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.Tiers.Total)
	assert.Equal(t, rep.Failed, len(rep.Offenders))
	for _, o := range rep.Offenders {
		assert.False(t, o.Passed)
	}
}

func TestSecretsSetAndDelete(t *testing.T) {
	keyring.MockInit()
	e := newEnv(t)

	_, err := e.run("hunter2\n", "secrets", "set", "weworkremotely")
	require.Error(t, err, "no auth_user configured and no --user")

	out, err := e.run("hunter2\n", "secrets", "set", "weworkremotely", "--user", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "stored password")

	pw, err := secrets.GetFeedPassword("weworkremotely", "me")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	_, err = e.run("", "secrets", "delete", "weworkremotely", "--user", "me")
	require.NoError(t, err)
	_, err = e.run("", "secrets", "delete", "weworkremotely", "--user", "me")
	require.ErrorIs(t, err, secrets.ErrNoPassword)
}

func TestWithLockRefusesWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.lock")
	held := flock.New(path)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	ran := false
	err = withLock(ctx, path, func() error { ran = true; return nil })
	require.Error(t, err)
	assert.False(t, ran)

	require.NoError(t, held.Unlock())
	require.NoError(t, withLock(context.Background(), path, func() error { ran = true; return nil }))
	assert.True(t, ran)
}

type stubProc struct{ rep pipeline.Report }

func (s stubProc) Process(context.Context, []domain.Posting) (pipeline.Report, error) {
	return s.rep, nil
}

func TestPublishingProcessorAnnouncesBatches(t *testing.T) {
	hub := events.NewHub()
	ch := hub.Subscribe()
	rep := pipeline.Report{
		Decisions: []pipeline.Decision{
			{Kind: pipeline.KindNew, Identity: domain.SourceRef{Source: "remotive", SourceID: "1"}},
			{Kind: pipeline.KindUnchanged, Identity: domain.SourceRef{Source: "remotive", SourceID: "2"}},
		},
		Counts: map[pipeline.Kind]int{pipeline.KindNew: 1, pipeline.KindUnchanged: 1},
		Tiers:  map[domain.Tier]int{domain.TierHigh: 2},
	}

	_, err := publishingProcessor{next: stubProc{rep: rep}, hub: hub}.Process(context.Background(), nil)
	require.NoError(t, err)

	e := <-ch
	assert.Equal(t, events.TypeBatchProcessed, e.Type)
	var got batchEvent
	require.NoError(t, json.Unmarshal(e.Data, &got))
	assert.Equal(t, []domain.SourceRef{{Source: "remotive", SourceID: "1"}}, got.New)
	assert.Equal(t, 1, got.Counts[pipeline.KindUnchanged])
}
