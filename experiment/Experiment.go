// Package experiment implements functionality for running a training
// experiment end to end: building the models a configuration
// describes, driving the trainer's epoch loop, tracking metrics,
// checkpointing on cadence and evaluating the result against
// baselines.
package experiment

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"

	"github.com/experiorlab/experior/config"
	"github.com/experiorlab/experior/eval"
	"github.com/experiorlab/experior/experiment/checkpointer"
	"github.com/experiorlab/experior/experiment/tracker"
	"github.com/experiorlab/experior/expert"
	"github.com/experiorlab/experior/network"
	"github.com/experiorlab/experior/policy"
	"github.com/experiorlab/experior/prior"
	"github.com/experiorlab/experior/trainer"
	"github.com/sirupsen/logrus"
)

// Snapshot is the persisted training state of one epoch.
type Snapshot struct {
	Epoch  int
	Policy map[string][]float64
	Prior  []byte
}

// Experiment owns one training run.
type Experiment struct {
	conf *config.Config

	prior     prior.Prior
	behaviour *policy.Transformer
	trainer   trainer.Trainer

	trackers []tracker.Tracker
	manager  *checkpointer.Manager // nil when checkpointing is off
	log      *logrus.Entry
	rng      *rand.Rand
}

// New builds an experiment from a validated configuration. Checkpoint
// management is disabled for test runs.
func New(conf *config.Config, log *logrus.Logger) (*Experiment, error) {
	seed := uint64(conf.Seed)

	pr, err := prior.New(conf.Prior, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	exp, err := expert.New(conf.Expert, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// Histories are padded to the horizon plus the zero sentinel
	// step.
	seq := conf.Trainer.MaxHorizon + 1
	pol, err := policy.NewTransformer(conf.Policy,
		conf.Trainer.PolicyTrainer.BatchSize, seq, conf.Prior.NumActions)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	tr, err := trainer.New(conf, pr, pol, exp, seed+2)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if err := os.MkdirAll(conf.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	run := tracker.NewRun(conf.Wandb.Project, conf.OutDir)
	entry := log.WithFields(logrus.Fields{
		"project": conf.Wandb.Project,
		"run_id":  run.ID(),
	})

	e := &Experiment{
		conf:      conf,
		prior:     pr,
		behaviour: pol,
		trainer:   tr,
		trackers:  []tracker.Tracker{run, tracker.NewConsole(entry)},
		log:       entry,
		rng:       rand.New(rand.NewSource(seed + 3)),
	}

	if !conf.TestRun {
		e.manager, err = checkpointer.NewManager(conf.CkptDir(),
			conf.SaveEverySteps, conf.KeepEverySteps)
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	return e, nil
}

// Register adds a tracker to the (possibly already running)
// experiment.
func (e *Experiment) Register(t tracker.Tracker) {
	e.trackers = append(e.trackers, t)
}

// Run trains for the configured number of epochs, then evaluates the
// result and saves all tracked data.
func (e *Experiment) Run() error {
	if err := e.trainer.Initialize(); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	epochs := e.conf.Trainer.PolicyTrainer.Epochs
	e.log.WithField("epochs", epochs).Info("starting training")

	for epoch := 1; epoch <= epochs; epoch++ {
		logs, err := e.trainer.TrainEpoch(epoch)
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}
		e.track(epoch, logs)

		if err := e.checkpoint(epoch); err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}

	if err := e.SaveMetrics(); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	return e.Save()
}

// SaveMetrics evaluates the trained policy and the baselines, logs the
// final regrets and writes the regret curves to metrics.json under the
// output directory.
func (e *Experiment) SaveMetrics() error {
	numActions := e.conf.Prior.NumActions
	horizon := e.conf.Trainer.TestHorizon
	mcSamples := e.conf.Trainer.PolicyTrainer.MCSamples
	seq := e.conf.Trainer.MaxHorizon + 1

	evalPolicy, err := e.behaviour.CloneWithBatch(mcSamples)
	if err != nil {
		return fmt.Errorf("saveMetrics: %v", err)
	}

	models := map[string]policy.Policy{
		"ours":    evalPolicy,
		"uniform": eval.NewUniform(mcSamples, seq, numActions),
		"ucb":     eval.NewUCB(mcSamples, seq, numActions, 2.0),
	}

	metrics := make(map[string][]float64, len(models))
	for name, model := range models {
		regret, err := eval.BayesRegret(e.rng, model, numActions, horizon,
			mcSamples)
		if err != nil {
			return fmt.Errorf("saveMetrics: %v: %v", name, err)
		}
		metrics[name] = regret
		e.log.WithFields(logrus.Fields{
			"model":  name,
			"regret": regret[len(regret)-1],
		}).Info("evaluated")
	}

	raw, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("saveMetrics: %w", err)
	}

	path := filepath.Join(e.conf.OutDir, "metrics.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("saveMetrics: %w", err)
	}
	return nil
}

// Save persists all tracked data.
func (e *Experiment) Save() error {
	for _, t := range e.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// checkpoint saves the training state if the epoch falls on the save
// cadence.
func (e *Experiment) checkpoint(epoch int) error {
	if e.manager == nil || !e.manager.ShouldSave(epoch) {
		return nil
	}

	snap, err := e.snapshot(epoch)
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	if err := e.manager.Save(epoch, snap); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}

	e.log.WithField("epoch", epoch).Info("checkpoint saved")
	return nil
}

// snapshot captures the current training state.
func (e *Experiment) snapshot(epoch int) (*Snapshot, error) {
	enc, ok := e.prior.(gob.GobEncoder)
	if !ok {
		return nil, fmt.Errorf("snapshot: prior %T is not serializable",
			e.prior)
	}
	priorBytes, err := enc.GobEncode()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Epoch:  epoch,
		Policy: network.Weights(e.behaviour.Network()),
		Prior:  priorBytes,
	}, nil
}

// track sends one epoch's metrics to every tracker.
func (e *Experiment) track(epoch int, metrics map[string]float64) {
	for _, t := range e.trackers {
		t.Track(epoch, metrics)
	}
}
