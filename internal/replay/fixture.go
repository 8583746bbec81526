package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/google/uuid"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a recorded run. Config uses
// optimizer.Config's own JSON tags.
type Fixture struct {
	FixtureID   string           `json:"fixture_id"`
	Description string           `json:"description"`
	RunID       string           `json:"run_id"`
	Objective   string           `json:"objective"`
	CreatedAt   time.Time        `json:"created_at"`
	Config      optimizer.Config `json:"config"`
	Converged   bool             `json:"converged"`
	Final       []float64        `json:"final_params"`
	History     history.Snapshot `json:"history"`
}

// #endregion fixture-types

// #region fixture-build

// NewFixture captures a finished run as a fixture.
func NewFixture(objectiveName, description string, config optimizer.Config, res optimizer.Result) Fixture {
	return Fixture{
		FixtureID:   uuid.New().String(),
		Description: description,
		RunID:       res.RunID,
		Objective:   objectiveName,
		CreatedAt:   time.Now().UTC(),
		Config:      config,
		Converged:   res.Converged,
		Final:       res.Final,
		History:     res.History,
	}
}

// #endregion fixture-build

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ExportFixture writes f as indented JSON.
func ExportFixture(path string, f Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-io
