package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"smflab/internal/config"
	"smflab/internal/models"
	"smflab/internal/repository"
)

// ImportSeed appends seed records whose codes are not yet known. Seed blocks
// without a code are matched on type, title and span instead. Existing
// records are never overwritten, so re-running an import is harmless.
func ImportSeed(ctx context.Context, repo *repository.Repository, seed *config.Seed, logger *zerolog.Logger) (int, int, error) {
	existing := make(map[string]bool)
	spans := make(map[string]bool)
	for _, b := range repo.Blocks() {
		existing[b.Code] = true
		spans[blockKey(&b)] = true
	}

	tests := 0
	for _, t := range seed.Tests {
		if repo.Has(t.Code) {
			continue
		}
		if _, err := repo.Insert(ctx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				continue
			}
			return tests, 0, fmt.Errorf("import test %s: %w", t.Code, err)
		}
		tests++
	}

	blocks := 0
	for _, b := range seed.Blocks {
		key := blockKey(&b)
		if (b.Code != "" && existing[b.Code]) || (b.Code == "" && spans[key]) {
			continue
		}
		if _, err := repo.AddBlock(ctx, b, nil); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				continue
			}
			return tests, blocks, fmt.Errorf("import block %s: %w", b.Code, err)
		}
		spans[key] = true
		blocks++
	}

	if tests > 0 || blocks > 0 {
		logger.Info().Int("tests", tests).Int("blocks", blocks).Msg("seed imported")
	}
	return tests, blocks, nil
}

func blockKey(b *models.FacilityBlock) string {
	return string(b.Type) + "|" + b.Title + "|" + b.Start.Format(models.DateLayout) + "|" + b.End.Format(models.DateLayout)
}
