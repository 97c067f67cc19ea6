// Package config implements hierarchical experiment configuration.
// Configurations are YAML documents composed from named fragments
// through a defaults list, with ${path.to.key} interpolation resolved
// against the merged tree. The merged tree decodes into a Config,
// which fully describes a minimax bandit training run.
package config

import (
	"fmt"
	"path/filepath"
)

// Variant tags recognized by the component factories. A document
// naming any other variant fails validation.
const (
	TransformerPolicy string = "transformer"
	BetaPrior         string = "beta"
	SyntheticExpert   string = "synthetic"
	MiniMaxTrainer    string = "minimax"
	Reinforce         string = "reinforce"
	AdamSolver        string = "adam"
	VanillaSolver     string = "vanilla"
)

// PolicyConfig describes the policy network.
type PolicyConfig struct {
	Name     string  `yaml:"name"`
	HDim     int     `yaml:"h_dim"`
	Dtype    string  `yaml:"dtype"`
	NumHeads int     `yaml:"num_heads"`
	DropP    float64 `yaml:"drop_p"`
	NBlocks  int     `yaml:"n_blocks"`
}

// PriorConfig describes the prior over bandit arm means. InitAlpha and
// InitBeta are nullable: a nil value requests random initialization of
// the corresponding shape parameters.
type PriorConfig struct {
	Name       string   `yaml:"name"`
	NumActions int      `yaml:"num_actions"`
	InitAlpha  *float64 `yaml:"init_alpha"`
	InitBeta   *float64 `yaml:"init_beta"`
	Epsilon    float64  `yaml:"epsilon"`
}

// ExpertConfig describes the synthetic demonstration generator. The
// nested prior must agree with the top-level prior on the number of
// actions; the shipped fragments pin this with an interpolation.
type ExpertConfig struct {
	Name  string      `yaml:"name"`
	Prior PriorConfig `yaml:"prior"`
}

// SubTrainerConfig holds the hyperparameters of one side of the
// minimax objective. An empty optim selects Adam.
type SubTrainerConfig struct {
	LR        float64 `yaml:"lr"`
	BatchSize int     `yaml:"batch_size"`
	Epochs    int     `yaml:"epochs"`
	MCSamples int     `yaml:"mc_samples"`
	GradEst   string  `yaml:"grad_est"`
	Optim     string  `yaml:"optim"`
}

// TrainerConfig describes the trainer and its two nested sub-trainers.
type TrainerConfig struct {
	Name          string           `yaml:"name"`
	PolicyTrainer SubTrainerConfig `yaml:"policy_trainer"`
	PriorTrainer  SubTrainerConfig `yaml:"prior_trainer"`
	MaxHorizon    int              `yaml:"max_horizon"`
	TestHorizon   int              `yaml:"test_horizon"`
}

// WandbConfig carries experiment-tracking metadata.
type WandbConfig struct {
	Project string `yaml:"project"`
}

// Config is the root configuration of a training run.
type Config struct {
	Seed           int64  `yaml:"seed"`
	TestRun        bool   `yaml:"test_run"`
	OutDir         string `yaml:"out_dir"`
	SaveEverySteps int    `yaml:"save_every_steps"`
	KeepEverySteps int    `yaml:"keep_every_steps"`

	Policy  PolicyConfig  `yaml:"policy"`
	Prior   PriorConfig   `yaml:"prior"`
	Expert  ExpertConfig  `yaml:"expert"`
	Trainer TrainerConfig `yaml:"trainer"`
	Wandb   WandbConfig   `yaml:"wandb"`
}

// CkptDir returns the directory checkpoints are saved under.
func (c *Config) CkptDir() string {
	return filepath.Join(c.OutDir, "checkpoints")
}

// Validate returns an error describing the first violated constraint
// of the configuration, or nil if the configuration is usable.
func (c *Config) Validate() error {
	if c.Policy.Name != TransformerPolicy {
		return fmt.Errorf("validate: no such policy %q", c.Policy.Name)
	}
	if c.Prior.Name != BetaPrior {
		return fmt.Errorf("validate: no such prior %q", c.Prior.Name)
	}
	if c.Expert.Name != SyntheticExpert {
		return fmt.Errorf("validate: no such expert %q", c.Expert.Name)
	}
	if c.Trainer.Name != MiniMaxTrainer {
		return fmt.Errorf("validate: no such trainer %q", c.Trainer.Name)
	}

	if c.Policy.Dtype != "float32" && c.Policy.Dtype != "float64" {
		return fmt.Errorf("validate: no such dtype %q", c.Policy.Dtype)
	}
	if c.Policy.HDim <= 0 || c.Policy.NumHeads <= 0 || c.Policy.NBlocks <= 0 {
		return fmt.Errorf("validate: policy dimensions must be positive")
	}
	if c.Policy.HDim%c.Policy.NumHeads != 0 {
		return fmt.Errorf("validate: h_dim (%d) must be divisible by "+
			"num_heads (%d)", c.Policy.HDim, c.Policy.NumHeads)
	}
	if c.Policy.DropP < 0 || c.Policy.DropP >= 1 {
		return fmt.Errorf("validate: drop_p must be in [0, 1), got %v",
			c.Policy.DropP)
	}

	if c.Prior.NumActions <= 1 {
		return fmt.Errorf("validate: prior needs at least 2 actions, got %d",
			c.Prior.NumActions)
	}
	if c.Expert.Prior.NumActions != c.Prior.NumActions {
		return fmt.Errorf("validate: expert prior has %d actions but the "+
			"prior has %d", c.Expert.Prior.NumActions, c.Prior.NumActions)
	}

	if err := validateSubTrainer("policy_trainer",
		c.Trainer.PolicyTrainer); err != nil {
		return err
	}
	if err := validateSubTrainer("prior_trainer",
		c.Trainer.PriorTrainer); err != nil {
		return err
	}

	// The minimax trainer alternates the two objectives epoch by
	// epoch, so the sub-trainers must agree on the epoch count.
	if c.Trainer.PolicyTrainer.Epochs != c.Trainer.PriorTrainer.Epochs {
		return fmt.Errorf("validate: policy_trainer runs %d epochs but "+
			"prior_trainer runs %d", c.Trainer.PolicyTrainer.Epochs,
			c.Trainer.PriorTrainer.Epochs)
	}

	if c.Trainer.MaxHorizon <= 0 || c.Trainer.TestHorizon <= 0 {
		return fmt.Errorf("validate: horizons must be positive")
	}
	if c.Trainer.TestHorizon > c.Trainer.MaxHorizon {
		return fmt.Errorf("validate: test_horizon (%d) exceeds the "+
			"horizon histories are sized for (%d)", c.Trainer.TestHorizon,
			c.Trainer.MaxHorizon)
	}

	if c.OutDir == "" {
		return fmt.Errorf("validate: out_dir must be set")
	}
	if c.SaveEverySteps <= 0 || c.KeepEverySteps <= 0 {
		return fmt.Errorf("validate: checkpoint cadences must be positive")
	}
	if c.SaveEverySteps > c.KeepEverySteps {
		return fmt.Errorf("validate: save_every_steps (%d) must not exceed "+
			"keep_every_steps (%d)", c.SaveEverySteps, c.KeepEverySteps)
	}

	return nil
}

func validateSubTrainer(name string, s SubTrainerConfig) error {
	if s.LR <= 0 {
		return fmt.Errorf("validate: %v: lr must be positive, got %v", name,
			s.LR)
	}
	if s.BatchSize <= 0 || s.Epochs <= 0 || s.MCSamples <= 0 {
		return fmt.Errorf("validate: %v: batch_size, epochs and mc_samples "+
			"must be positive", name)
	}
	if s.MCSamples%s.BatchSize != 0 {
		return fmt.Errorf("validate: %v: mc_samples (%d) must be a multiple "+
			"of batch_size (%d)", name, s.MCSamples, s.BatchSize)
	}
	if s.GradEst != "" && s.GradEst != Reinforce {
		return fmt.Errorf("validate: %v: no such gradient estimator %q",
			name, s.GradEst)
	}
	if s.Optim != "" && s.Optim != AdamSolver && s.Optim != VanillaSolver {
		return fmt.Errorf("validate: %v: no such optimizer %q", name, s.Optim)
	}
	return nil
}
