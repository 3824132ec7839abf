package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smflab/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SMFLAB_TEST_SECRET", "s3cret")

	path := writeFile(t, dir, "config.yaml", `
http:
  addr: ":9090"
  jwt_secret: "${SMFLAB_TEST_SECRET}"
database:
  path: "`+filepath.Join(dir, "db", "smflab.db")+`"
holidays:
  extra: ["2025-12-26"]
telegram:
  manager_chat_ids: [1, 2]
  reminder_hour: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "s3cret", cfg.HTTP.JWTSecret)
	assert.Equal(t, "FR", cfg.Holidays.Region)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.ManagerChatIDs)
	assert.DirExists(t, filepath.Join(dir, "db"))

	assert.Equal(t, "info", cfg.LogLevel())
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 1, cfg.HolidayYearsAhead())
	assert.Equal(t, "carlo", cfg.ClientMarker())
	assert.Equal(t, 1.0, cfg.ReminderRate())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "http: [")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Monitoring.PrometheusPort = 70000 }},
		{"bad reminder hour", func(c *Config) { c.Telegram.ReminderHour = 24 }},
		{"bad extra holiday", func(c *Config) { c.Holidays.Extra = []string{"26.12.2025"} }},
		{"unknown holiday region", func(c *Config) { c.Holidays.Region = "XX" }},
		{"blank marker", func(c *Config) { c.Listing.ClientMarker = "   " }},
		{"sheets without id", func(c *Config) { c.Sheets.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var ok Config
	assert.NoError(t, ok.Validate())
	ok.Holidays.Region = "fr"
	assert.NoError(t, ok.Validate())
}

func TestLoadRejectsUnknownRegion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  path: "`+filepath.Join(dir, "smflab.db")+`"
holidays:
  region: "ZZ"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holidays.region")
}

const seedYAML = `
tests:
  - code: T-001
    name: EMC Radiated Immunity (Pump #12)
    requester: Carlo Client
    requester_role: Client
    division: Div-A
    pbs: PBS-8277VD
    steps:
      REQUEST_VALIDATION: DONE
      CONTRACT_REVIEW: APPROVED
      PRE: "NO"
      TEST_SETUP: COMPLETED
      SCHEDULING: ON_HOLD
    start: "2025-06-10"
    end: "2025-06-11"
  - code: T-002
    name: Magnetic Static Field
    requester: Carlo Client
    operators: [Olivia Operator]
blocks:
  - code: B-01
    type: m
    title: Chiller maintenance
    start: "2025-06-05"
    end: "2025-06-05"
  - code: B-02
    type: l
    start: "2025-06-20"
    end: "2025-06-22"
`

func TestLoadSeed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "seed.yaml", seedYAML)

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed.Tests, 2)
	require.Len(t, seed.Blocks, 2)

	first := seed.Tests[0]
	assert.Equal(t, models.ValuePlanned, first.Steps[models.StepScheduling], "SCHEDULING is derived on import")
	assert.Equal(t, models.ValueNotSubmitted, first.Steps[models.StepTestReport], "missing steps default")
	assert.Equal(t, "2025-06-10..2025-06-11", first.Dates.String())

	assert.Equal(t, []string{"Olivia Operator"}, seed.Tests[1].Operators)
	assert.True(t, seed.Tests[1].Dates.IsEmpty())

	assert.Equal(t, models.BlockOperatorLeave, seed.Blocks[1].Type)
	assert.Equal(t, "Operator leave", seed.Blocks[1].Title)
}

func TestSeedValidation(t *testing.T) {
	tests := []struct {
		name string
		file SeedFile
	}{
		{"missing code", SeedFile{Tests: []SeedTest{{Name: "x"}}}},
		{"duplicate code", SeedFile{Tests: []SeedTest{{Code: "T-1"}, {Code: "T-1"}}}},
		{"partial dates", SeedFile{Tests: []SeedTest{{Code: "T-1", Start: "2025-01-01"}}}},
		{"inverted dates", SeedFile{Tests: []SeedTest{{Code: "T-1", Start: "2025-01-02", End: "2025-01-01"}}}},
		{"bad step value", SeedFile{Tests: []SeedTest{{Code: "T-1", Steps: map[string]string{"PRE": "MAYBE"}}}}},
		{"unknown step", SeedFile{Tests: []SeedTest{{Code: "T-1", Steps: map[string]string{"SHIPPING": "DONE"}}}}},
		{"bad block type", SeedFile{Blocks: []SeedBlock{{Type: "x", Start: "2025-01-01", End: "2025-01-01"}}}},
		{"block without dates", SeedFile{Blocks: []SeedBlock{{Type: "m"}}}},
		{"duplicate block", SeedFile{Blocks: []SeedBlock{
			{Code: "B-01", Type: "m", Start: "2025-01-01", End: "2025-01-01"},
			{Code: "B-01", Type: "b", Start: "2025-01-02", End: "2025-01-02"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Build()
			assert.Error(t, err)
		})
	}
}

func TestWatchSeed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.yaml", seedYAML)

	var mu sync.Mutex
	var loads []int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchSeed(ctx, path, 10*time.Millisecond, func(s *Seed) {
		mu.Lock()
		defer mu.Unlock()
		loads = append(loads, len(s.Tests))
	})
	require.NoError(t, err)

	updated := seedYAML + `
  - code: B-03
    type: b
    start: "2025-07-01"
    end: "2025-07-01"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loads) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
