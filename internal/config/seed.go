package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"smflab/internal/models"
	"smflab/internal/workflow"
)

// SeedTest is a test record in seed.yaml.
type SeedTest struct {
	Code          string            `yaml:"code"`
	Name          string            `yaml:"name"`
	Requester     string            `yaml:"requester"`
	RequesterRole string            `yaml:"requester_role"`
	Division      string            `yaml:"division"`
	PBS           string            `yaml:"pbs"`
	Archived      bool              `yaml:"archived"`
	Steps         map[string]string `yaml:"steps"`
	Start         string            `yaml:"start"`
	End           string            `yaml:"end"`
	Operators     []string          `yaml:"operators"`
}

// SeedBlock is a facility block in seed.yaml.
type SeedBlock struct {
	Code  string `yaml:"code"`
	Type  string `yaml:"type"` // maintenance|blackout|operator-leave or m|b|l
	Title string `yaml:"title"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// SeedFile is the root of seed.yaml.
type SeedFile struct {
	Tests  []SeedTest  `yaml:"tests"`
	Blocks []SeedBlock `yaml:"blocks"`
}

// Seed is a validated seed ready for import.
type Seed struct {
	Tests  []*models.Test
	Blocks []models.FacilityBlock
}

// LoadSeed loads and validates seed records from a YAML file.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		path = "configs/seed.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	seed, err := file.Build()
	if err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}
	return seed, nil
}

// Build validates the raw records and converts them to models.
func (f *SeedFile) Build() (*Seed, error) {
	seed := &Seed{}
	codes := make(map[string]bool)

	for i, st := range f.Tests {
		if st.Code == "" {
			return nil, fmt.Errorf("tests[%d]: code is required", i)
		}
		if codes[st.Code] {
			return nil, fmt.Errorf("tests[%d]: duplicate code '%s'", i, st.Code)
		}
		codes[st.Code] = true

		dates, err := models.NewRange(st.Start, st.End)
		if err != nil {
			return nil, fmt.Errorf("tests[%d] %s: %w", i, st.Code, err)
		}

		steps := models.DefaultSteps()
		for k, v := range st.Steps {
			steps[models.StepKey(k)] = v
		}
		if err := workflow.ValidateSteps(steps); err != nil {
			return nil, fmt.Errorf("tests[%d] %s: %w", i, st.Code, err)
		}

		t := &models.Test{
			Code:          st.Code,
			Name:          st.Name,
			Requester:     st.Requester,
			RequesterRole: st.RequesterRole,
			Division:      st.Division,
			PBS:           st.PBS,
			Archived:      st.Archived,
			Steps:         steps,
			Dates:         dates,
			Operators:     append([]string(nil), st.Operators...),
		}
		workflow.Normalize(t)
		seed.Tests = append(seed.Tests, t)
	}

	blockCodes := make(map[string]bool)
	for i, sb := range f.Blocks {
		if sb.Code != "" && blockCodes[sb.Code] {
			return nil, fmt.Errorf("blocks[%d]: duplicate code '%s'", i, sb.Code)
		}
		blockCodes[sb.Code] = true

		bt, err := models.ParseBlockType(sb.Type)
		if err != nil {
			return nil, fmt.Errorf("blocks[%d]: %w", i, err)
		}
		r, err := models.NewRange(sb.Start, sb.End)
		if err != nil {
			return nil, fmt.Errorf("blocks[%d]: %w", i, err)
		}
		if !r.IsSet() {
			return nil, fmt.Errorf("blocks[%d]: start and end are required", i)
		}
		title := sb.Title
		if title == "" {
			title = bt.Label()
		}
		seed.Blocks = append(seed.Blocks, models.FacilityBlock{
			Code:  sb.Code,
			Type:  bt,
			Title: title,
			Start: *r.Start,
			End:   *r.End,
		})
	}

	return seed, nil
}
