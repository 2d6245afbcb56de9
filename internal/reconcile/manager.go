// Package reconcile keeps the denormalized per-user review counter in line
// with the review log.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/repository"
)

// Manager runs counter reconciliation in the background.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) (int, error)
}

type Config struct {
	// Interval between passes. Zero disables the background loop; RunOnce still works.
	Interval time.Duration
	Logger   *logrus.Logger
}

type manager struct {
	cfg     Config
	users   repository.UserRepository
	reviews repository.ReviewRepository

	wg     sync.WaitGroup
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, users repository.UserRepository, reviews repository.ReviewRepository) Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:     cfg,
		users:   users,
		reviews: reviews,
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		m.cfg.Logger.Info("review counter reconciler disabled")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("reconciler already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.loop()

	m.cfg.Logger.Infof("review counter reconciler started, interval: %s", m.cfg.Interval)
	return nil
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.cfg.Logger.Info("review counter reconciler stopped")
}

func (m *manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunOnce(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.cfg.Logger.WithError(err).Warn("review counter reconciliation failed")
			}
		}
	}
}

// RunOnce rewrites every drifted counter from the log and returns how many
// users were corrected.
func (m *manager) RunOnce(ctx context.Context) (int, error) {
	ids, err := m.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	fixed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}

		user, err := m.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return fixed, fmt.Errorf("load user %d: %w", id, err)
		}
		actual, err := m.reviews.CountByOwner(ctx, id)
		if err != nil {
			return fixed, fmt.Errorf("count reviews of user %d: %w", id, err)
		}
		if actual == user.ReviewCount {
			continue
		}

		if err := m.users.SetReviewCount(ctx, id, actual); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return fixed, fmt.Errorf("set review count of user %d: %w", id, err)
		}
		m.cfg.Logger.WithFields(logrus.Fields{
			"user_id": id,
			"stored":  user.ReviewCount,
			"actual":  actual,
		}).Info("review counter corrected")
		fixed++
	}
	return fixed, nil
}
