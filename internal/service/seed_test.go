package service

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smflab/internal/config"
	"smflab/internal/models"
	"smflab/internal/repository"
)

func TestImportSeed(t *testing.T) {
	logger := zerolog.New(io.Discard)
	repo := repository.New(&logger)
	ctx := context.Background()

	file := config.SeedFile{
		Tests: []config.SeedTest{
			{Code: "T-001", Name: "EMC", Steps: map[string]string{"TEST_SETUP": "COMPLETED"}, Start: "2025-06-10", End: "2025-06-10"},
			{Code: "T-002", Name: "Valve"},
		},
		Blocks: []config.SeedBlock{
			{Code: "B-01", Type: "m", Start: "2025-06-05", End: "2025-06-05"},
		},
	}
	seed, err := file.Build()
	require.NoError(t, err)

	tests, blocks, err := ImportSeed(ctx, repo, seed, &logger)
	require.NoError(t, err)
	assert.Equal(t, 2, tests)
	assert.Equal(t, 1, blocks)

	got, err := repo.Get("T-001")
	require.NoError(t, err)
	assert.Equal(t, models.ValuePlanned, got.Steps[models.StepScheduling])

	// Live edits survive a re-import of the same seed.
	_, err = repo.Update(ctx, "T-002", repository.AnyVersion, func(tt *models.Test, _ repository.View) error {
		tt.Name = "Valve A23"
		return nil
	})
	require.NoError(t, err)

	file.Tests = append(file.Tests, config.SeedTest{Code: "T-003", Name: "Thermal"})
	seed, err = file.Build()
	require.NoError(t, err)

	tests, blocks, err = ImportSeed(ctx, repo, seed, &logger)
	require.NoError(t, err)
	assert.Equal(t, 1, tests)
	assert.Equal(t, 0, blocks)

	got, _ = repo.Get("T-002")
	assert.Equal(t, "Valve A23", got.Name)
	assert.Len(t, repo.List(), 3)
}

func TestImportSeedCodelessBlocks(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []config.SeedBlock
		imports int
		want    []string
	}{
		{
			name:    "reimport keeps one block",
			blocks:  []config.SeedBlock{{Type: "m", Start: "2025-06-05", End: "2025-06-05"}},
			imports: 3,
			want:    []string{"B-01"},
		},
		{
			name: "repeated entry in one file",
			blocks: []config.SeedBlock{
				{Type: "m", Start: "2025-06-05", End: "2025-06-05"},
				{Type: "m", Start: "2025-06-05", End: "2025-06-05"},
			},
			imports: 1,
			want:    []string{"B-01"},
		},
		{
			name: "different title or span is a new block",
			blocks: []config.SeedBlock{
				{Type: "m", Start: "2025-06-05", End: "2025-06-05"},
				{Type: "m", Title: "Shaker service", Start: "2025-06-05", End: "2025-06-05"},
				{Type: "m", Start: "2025-06-05", End: "2025-06-06"},
			},
			imports: 2,
			want:    []string{"B-01", "B-02", "B-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zerolog.New(io.Discard)
			repo := repository.New(&logger)
			file := config.SeedFile{Blocks: tt.blocks}
			seed, err := file.Build()
			require.NoError(t, err)

			for i := 0; i < tt.imports; i++ {
				_, _, err = ImportSeed(context.Background(), repo, seed, &logger)
				require.NoError(t, err)
			}

			var codes []string
			for _, b := range repo.Blocks() {
				codes = append(codes, b.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}
