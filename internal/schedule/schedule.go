// Package schedule toggles the engine's auto-accept mode on a cron
// schedule, so unattended dispatch can be confined to configured windows
// (e.g. enable at 22:00, disable at 06:00).
package schedule

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/marcus/dispatch/internal/logging"
)

// Toggler is the part of the engine the scheduler drives.
type Toggler interface {
	SetAutoAccept(enabled bool)
}

// Window is a pair of cron expressions bounding an auto-accept window.
type Window struct {
	Enable  string `mapstructure:"enable"`
	Disable string `mapstructure:"disable"`
}

// Scheduler manages cron-driven auto-accept windows.
type Scheduler struct {
	cron   *cron.Cron
	target Toggler
	logger *logging.Logger
}

// New creates a scheduler driving the given target.
func New(target Toggler) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		target: target,
		logger: logging.Component("schedule"),
	}
}

// AddWindow registers one enable/disable pair. Invalid cron expressions
// are rejected before anything is scheduled.
func (s *Scheduler) AddWindow(w Window) error {
	parser := cron.ParseStandard

	if _, err := parser(w.Enable); err != nil {
		return fmt.Errorf("invalid enable cron %q: %w", w.Enable, err)
	}
	if _, err := parser(w.Disable); err != nil {
		return fmt.Errorf("invalid disable cron %q: %w", w.Disable, err)
	}

	if _, err := s.cron.AddFunc(w.Enable, func() {
		s.logger.InfoCtx("auto-accept window opened", map[string]any{"cron": w.Enable})
		s.target.SetAutoAccept(true)
	}); err != nil {
		return fmt.Errorf("scheduling enable: %w", err)
	}
	if _, err := s.cron.AddFunc(w.Disable, func() {
		s.logger.InfoCtx("auto-accept window closed", map[string]any{"cron": w.Disable})
		s.target.SetAutoAccept(false)
	}); err != nil {
		return fmt.Errorf("scheduling disable: %w", err)
	}
	return nil
}

// Start begins running scheduled toggles in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. Running toggle callbacks finish first.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of scheduled entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
