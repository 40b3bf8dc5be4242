package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobintel-engine/internal/dedup"
	"jobintel-engine/internal/quality"
	"jobintel-engine/internal/rank"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultMatchesComponentDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, quality.DefaultConfig(), cfg.QualityConfig())

	dc, err := cfg.DedupConfig()
	require.NoError(t, err)
	want := dedup.DefaultConfig()
	dc.Similarity, want.Similarity = nil, nil
	assert.Equal(t, want, dc)

	mc, err := cfg.MatchConfig()
	require.NoError(t, err)
	wantMatch := rank.DefaultConfig()
	mc.Similarity, wantMatch.Similarity = nil, nil
	assert.Equal(t, wantMatch, mc)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  workers: 2
quality:
  spam:
    keywords: [wire transfer]
feeds:
  sources:
    - name: only
      url: https://example.com/rss
      enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.App.Workers)
	assert.Equal(t, 90, cfg.App.RetentionDays, "untouched keys keep defaults")
	assert.Equal(t, []string{"wire transfer"}, cfg.Quality.Spam.Keywords)
	assert.Equal(t, 3, cfg.Quality.Spam.Threshold)
	require.Len(t, cfg.Feeds.Sources, 1)
	assert.Equal(t, "only", cfg.Feeds.Sources[0].Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("app: [\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestApplyEnvAndPaths(t *testing.T) {
	cfg := Default()
	ApplyEnv(&cfg, env(map[string]string{
		EnvDataDir:  "/tmp/jobintel",
		EnvLogLevel: "debug",
		EnvHTTPAddr: ":9999",
	}))
	assert.Equal(t, "/tmp/jobintel", cfg.App.DataDir)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9999", cfg.App.HTTPAddr)
	assert.Equal(t, filepath.Join("/tmp/jobintel", "jobintel.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/tmp/jobintel", "ingest.lock"), cfg.LockPath())

	other := Default()
	ApplyEnv(&other, env(nil))
	assert.Equal(t, Default().App, other.App)

	assert.Equal(t, "a.yml", ResolvePath("a.yml", env(map[string]string{EnvConfig: "b.yml"})))
	assert.Equal(t, "b.yml", ResolvePath("", env(map[string]string{EnvConfig: "b.yml"})))
	assert.Equal(t, DefaultPath(), ResolvePath("", env(nil)))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.App.Workers = 0
	cfg.Feeds.Interval = "every so often"
	cfg.Feeds.Sources[0].URL = "not a url"
	cfg.Feeds.Sources[1].Name = cfg.Feeds.Sources[0].Name
	cfg.Quality.Weights.Company = 0.5
	cfg.Dedup.Similarity = "soundex"
	cfg.Match.KeywordMode = "most"

	err := Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"app.workers",
		"feeds.interval",
		"feeds.sources[0].url",
		"feeds.sources[1].name",
		"quality.weights: sum",
		"dedup.similarity",
		"match.keyword_mode",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg := Default()
	cfg.Quality.Spam.Keywords = []string{" Crypto ", "crypto", "", "Telegram"}
	cfg.Match.KeywordMode = " ALL "
	cfg.Feeds.Interval = "@every 5m"
	for i := range cfg.Feeds.Sources {
		cfg.Feeds.Sources[i].Enabled = false
	}

	out, res := NormalizeAndValidate(cfg)
	assert.True(t, res.OK(), res.Errors)
	assert.Equal(t, []string{"crypto", "telegram"}, out.Quality.Spam.Keywords)
	assert.Equal(t, "all", out.Match.KeywordMode)
	assert.Equal(t, []string{" Crypto ", "crypto", "", "Telegram"}, cfg.Quality.Spam.Keywords, "input is not mutated")
	assert.Len(t, res.Warnings, 2)

	cfg.App.Workers = 0
	_, res = NormalizeAndValidate(cfg)
	assert.False(t, res.OK())
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := Default()
	require.NoError(t, SaveAtomic(path, cfg))

	cfg.App.Workers = 3
	require.NoError(t, SaveAtomic(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.App.Workers)

	bak, err := Load(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, 8, bak.App.Workers)

	cfg.App.Workers = 0
	assert.Error(t, SaveAtomic(path, cfg))
	got, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.App.Workers, "invalid config is never written")
}

func TestEnsureUserConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobintel", "config.yml")

	created, err := EnsureUserConfig(path)
	require.NoError(t, err)
	assert.True(t, created)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultYAML(), b)

	require.NoError(t, os.WriteFile(path, []byte("app:\n  workers: 1\n"), 0o644))
	created, err = EnsureUserConfig(path)
	require.NoError(t, err)
	assert.False(t, created)
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "app:\n  workers: 1\n", string(b))
}
