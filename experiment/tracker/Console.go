package tracker

import (
	"github.com/sirupsen/logrus"
)

// Console logs every tracked epoch through a structured logger.
type Console struct {
	log *logrus.Entry
}

// NewConsole returns a tracker that logs metrics as structured fields.
func NewConsole(log *logrus.Entry) *Console {
	return &Console{log: log}
}

// Track logs one epoch's metrics.
func (c *Console) Track(epoch int, metrics map[string]float64) {
	fields := logrus.Fields{"epoch": epoch}
	for k, v := range metrics {
		fields[k] = v
	}
	c.log.WithFields(fields).Info("epoch finished")
}

// Save implements the Tracker interface; console output needs no
// persistence.
func (c *Console) Save() error {
	return nil
}
