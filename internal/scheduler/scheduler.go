package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/notifier"
	"SVIXScreener/internal/screener"

	"github.com/robfig/cron/v3"
)

// Sender delivers a formatted message to the chat.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages cron tasks and chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Service  *screener.Service
	Notifier Sender
	Defaults screener.Query
	Ctx      context.Context
	logger   logger.Logger
}

// NewScheduler creates a new Scheduler. A nil sender disables outgoing reports.
func NewScheduler(ctx context.Context, svc *screener.Service, sender Sender, defaults screener.Query, l logger.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Service:  svc,
		Notifier: sender,
		Defaults: defaults,
		Ctx:      ctx,
		logger:   l,
	}
}

// RegisterAll registers the refresh and report tasks.
func (s *Scheduler) RegisterAll(refreshCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Infof("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Infof("scheduler stopped")
}

// RunRefreshNow downloads fresh data immediately.
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.logger.Infof("running refresh task")
	snap, err := s.Service.Refresh(s.Ctx)
	if err != nil {
		s.logger.Errorf("%s: refresh", err)
		s.trySend(fmt.Sprintf("❌ Price refresh failed: %v", err))
		return
	}
	s.logger.Infof("refreshed %d tickers, prices updated on %s", len(snap.Records), snap.LastDate.Format("2006-01-02"))
}

func (s *Scheduler) reportTask() {
	s.logger.Infof("running report task")
	res, err := s.Service.Query(s.Ctx, s.Defaults)
	if err != nil {
		s.logger.Errorf("%s: report query", err)
		s.trySend(fmt.Sprintf("❌ SVIX report failed: %v", err))
		return
	}
	s.trySend(notifier.FormatTable(res))
}

// HandleCommand processes a chat command and returns the reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText()
	}
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/svix":
		q, err := s.ParseQuery(fields[1:])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		res, err := s.Service.Query(ctx, q)
		if err != nil {
			s.logger.Errorf("%s: query from chat", err)
			return fmt.Sprintf("❌ Query failed: %v", err)
		}
		return notifier.FormatTable(res)
	case "/refresh":
		snap, err := s.Service.Refresh(ctx)
		if err != nil {
			s.logger.Errorf("%s: refresh from chat", err)
			return fmt.Sprintf("❌ Refresh failed: %v", err)
		}
		return fmt.Sprintf("✅ Cache cleared, %d tickers downloaded. Prices updated on %s",
			len(snap.Records), snap.LastDate.Format("2006-01-02"))
	default:
		return notifier.HelpText()
	}
}

// ParseQuery reads "[daily|weekly] [lookback] [threshold] [search...]" on top of the
// defaults. Each positional argument is optional; the first token that fits none of the
// earlier slots starts the search text.
func (s *Scheduler) ParseQuery(args []string) (screener.Query, error) {
	q := s.Defaults
	i := 0
	if i < len(args) {
		if iv, err := calculator.ParseInterval(args[i]); err == nil {
			q.Interval = iv
			i++
		}
	}
	if i < len(args) {
		if n, err := strconv.Atoi(args[i]); err == nil {
			if n <= 0 {
				return q, fmt.Errorf("lookback must be positive, got %d", n)
			}
			q.Lookback = n
			i++
		}
	}
	if i < len(args) {
		if f, err := strconv.ParseFloat(args[i], 64); err == nil {
			q.Threshold = f
			i++
		}
	}
	if i < len(args) {
		q.Search = strings.Join(args[i:], " ")
	}
	return q, nil
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Errorf("%s: send notification", err)
	}
}
