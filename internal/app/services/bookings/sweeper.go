package bookings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/app/system"
	"github.com/letsbefriends/platform/pkg/logger"
)

// DefaultSweepSpec runs the sweeper every quarter hour.
const DefaultSweepSpec = "@every 15m"

var _ system.Service = (*Sweeper)(nil)

// Sweeper cancels overdue bookings on a cron schedule.
type Sweeper struct {
	service *Service
	spec    string
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewSweeper validates spec (standard five-field or @descriptor syntax) and
// returns a stopped sweeper.
func NewSweeper(service *Service, spec string, log *logger.Logger) (*Sweeper, error) {
	if log == nil {
		log = logger.NewDefault("booking-sweeper")
	}
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{service: service, spec: spec, timeout: 30 * time.Second, log: log}, nil
}

func (s *Sweeper) Name() string { return "booking-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() { _, _ = s.Sweep(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.spec).Info("booking sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel, s.running = nil, nil, false
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("booking sweeper stopped")
	return nil
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expired, err := s.service.ExpireOverdue(ctx)
	metrics.RecordBookingSweep(err == nil)
	if err != nil {
		s.log.WithError(err).Warn("booking sweep failed")
		return expired, err
	}
	return expired, nil
}
