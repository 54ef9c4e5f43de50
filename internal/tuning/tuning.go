package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	// Board and economy; a HELLO config overrides them per game.
	BoardSize    int     `yaml:"board_size" json:"board_size"`
	EpisodeSteps int     `yaml:"episode_steps" json:"episode_steps"`
	SpawnCost    float64 `yaml:"spawn_cost" json:"spawn_cost"`

	Cluster Cluster `yaml:"cluster" json:"cluster"`
	Planner Planner `yaml:"planner" json:"planner"`
}

type Cluster struct {
	Window int     `yaml:"window" json:"window"`
	Decay  float64 `yaml:"decay" json:"decay"`
}

type Planner struct {
	Depth         int     `yaml:"depth" json:"depth"`
	CargoDecay    float64 `yaml:"cargo_decay" json:"cargo_decay"`
	CollectRate   float64 `yaml:"collect_rate" json:"collect_rate"`
	CollectGrowth float64 `yaml:"collect_growth" json:"collect_growth"`
	ReturnDecay   float64 `yaml:"return_decay" json:"return_decay"`
	LengthPenalty float64 `yaml:"length_penalty" json:"length_penalty"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		BoardSize:       15,
		EpisodeSteps:    400,
		SpawnCost:       500,
		Cluster: Cluster{
			Window: 3,
			Decay:  0.9,
		},
		Planner: Planner{
			Depth:         2,
			CargoDecay:    0.9,
			CollectRate:   0.25,
			CollectGrowth: 1.02,
			ReturnDecay:   0.9,
			LengthPenalty: 1.05,
		},
	}
}

// Load reads path over the defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.BoardSize < 1 {
		errs = append(errs, fmt.Errorf("board_size must be >= 1, got %d", t.BoardSize))
	}
	if t.EpisodeSteps < 1 {
		errs = append(errs, fmt.Errorf("episode_steps must be >= 1, got %d", t.EpisodeSteps))
	}
	if t.SpawnCost < 0 {
		errs = append(errs, fmt.Errorf("spawn_cost must be >= 0, got %v", t.SpawnCost))
	}
	if t.Cluster.Window < 1 || t.Cluster.Window > t.BoardSize {
		errs = append(errs, fmt.Errorf("cluster.window must be in [1, board_size], got %d", t.Cluster.Window))
	}
	if t.Planner.Depth < 1 || t.Planner.Depth > 4 {
		errs = append(errs, fmt.Errorf("planner.depth must be in [1, 4], got %d", t.Planner.Depth))
	}
	for name, v := range map[string]float64{
		"cluster.decay":        t.Cluster.Decay,
		"planner.cargo_decay":  t.Planner.CargoDecay,
		"planner.return_decay": t.Planner.ReturnDecay,
		"planner.collect_rate": t.Planner.CollectRate,
	} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", name, v))
		}
	}
	if t.Planner.CollectGrowth <= 0 {
		errs = append(errs, fmt.Errorf("planner.collect_growth must be > 0, got %v", t.Planner.CollectGrowth))
	}
	if t.Planner.LengthPenalty <= 0 {
		errs = append(errs, fmt.Errorf("planner.length_penalty must be > 0, got %v", t.Planner.LengthPenalty))
	}
	return errors.Join(errs...)
}
