package trainer

import (
	"fmt"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/expert"
	"github.com/experiorlab/experior/policy"
	"github.com/experiorlab/experior/prior"
)

// Trainer trains a policy against a prior. Epochs are numbered from 1;
// TrainEpoch returns a map of metric names to values for tracking.
type Trainer interface {
	// Initialize prepares the trainer's models before the first
	// epoch.
	Initialize() error

	TrainEpoch(epoch int) (map[string]float64, error)

	// Policy returns the current behaviour policy.
	Policy() policy.Policy

	// Prior returns the prior being trained.
	Prior() prior.Prior
}

// New returns the trainer described by the configuration, training the
// given models.
func New(conf *config.Config, pr prior.Prior, pol *policy.Transformer,
	exp expert.Expert, seed uint64) (Trainer, error) {
	switch conf.Trainer.Name {
	case config.MiniMaxTrainer:
		return NewMiniMax(conf, pr, pol, exp, seed)
	}
	return nil, fmt.Errorf("new: no such trainer %q", conf.Trainer.Name)
}
