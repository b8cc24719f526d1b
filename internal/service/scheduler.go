package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yasbot/internal/biz"
	"yasbot/internal/biz/repo"
	"yasbot/internal/ratelimit"
)

// SchedulerConfig holds the daily job policy. Hours are local to Location.
type SchedulerConfig struct {
	Location *time.Location

	WeatherHour int // morning forecast broadcast
	SummaryHour int // previous-day digest
	CleanupHour int // log retention sweep

	RetentionDays   int
	RainStickerPath string
}

// Scheduler runs the daily jobs: morning forecast, activity digest and log
// cleanup. It polls instead of sleeping until the next job so that clock
// jumps (suspend, NTP) cannot skip a day.
type Scheduler struct {
	config   SchedulerConfig
	chat     repo.ChatRepo
	groups   repo.GroupRepo
	messages repo.MessageLogRepo
	uc       *biz.Usecases
	limiters []*ratelimit.Limiter

	pollInterval time.Duration
	jobs         []*dailyJob
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// dailyJob fires once per calendar day at its configured hour. lastDate
// guards against double runs within the same hour.
type dailyJob struct {
	name     string
	hour     int
	lastDate string
	run      func(ctx context.Context)
}

// NewScheduler creates a new scheduler
func NewScheduler(config SchedulerConfig, chat repo.ChatRepo, groups repo.GroupRepo, messages repo.MessageLogRepo, uc *biz.Usecases, limiters []*ratelimit.Limiter, log zerolog.Logger) *Scheduler {
	if config.Location == nil {
		config.Location = time.Local
	}

	s := &Scheduler{
		config:       config,
		chat:         chat,
		groups:       groups,
		messages:     messages,
		uc:           uc,
		limiters:     limiters,
		pollInterval: 30 * time.Second,
		now:          time.Now,
		log:          log.With().Str("component", "scheduler").Logger(),
	}
	s.jobs = []*dailyJob{
		{name: "morning-weather", hour: config.WeatherHour, run: s.broadcastWeather},
		{name: "daily-summary", hour: config.SummaryHour, run: s.broadcastSummaries},
		{name: "cleanup", hour: config.CleanupHour, run: s.cleanup},
	}
	return s
}

// Start launches the poll loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	// Jobs whose hour already passed today must not fire on startup.
	s.markPastJobsDone()

	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("scheduler started")
}

// Stop stops the poll loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// markPastJobsDone stamps today's date on jobs whose hour is already over.
func (s *Scheduler) markPastJobsDone() {
	now := s.now().In(s.config.Location)
	today := now.Format("2006-01-02")
	for _, job := range s.jobs {
		if now.Hour() > job.hour {
			job.lastDate = today
		}
	}
}

// runDue fires every job whose hour has arrived and that has not run today.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now().In(s.config.Location)
	today := now.Format("2006-01-02")

	for _, job := range s.jobs {
		if now.Hour() < job.hour || job.lastDate == today {
			continue
		}
		job.lastDate = today

		s.log.Info().Str("job", job.name).Msg("running scheduled job")
		start := time.Now()
		job.run(ctx)
		s.log.Info().Str("job", job.name).Dur("took", time.Since(start)).Msg("scheduled job finished")
	}
}

// broadcastWeather sends the morning forecast to every registered group,
// with the rain sticker attached when the forecast warrants it.
func (s *Scheduler) broadcastWeather(ctx context.Context) {
	groupIDs, err := s.groups.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing groups failed")
		return
	}

	text, rainWarning := s.uc.Weather.MorningReport(ctx)
	for _, groupID := range groupIDs {
		var err error
		if rainWarning && s.config.RainStickerPath != "" {
			err = s.chat.SendImageWithCaption(ctx, groupID, s.config.RainStickerPath, text)
		} else {
			err = s.chat.SendText(ctx, groupID, text)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("chat_id", groupID).Msg("forecast broadcast failed")
		}
	}
}

// broadcastSummaries sends yesterday's digest to every registered group.
// One group failing never blocks the others.
func (s *Scheduler) broadcastSummaries(ctx context.Context) {
	groupIDs, err := s.groups.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing groups failed")
		return
	}

	yesterday := s.now().In(s.config.Location).AddDate(0, 0, -1)
	for _, groupID := range groupIDs {
		if err := s.uc.Summary.SendDailySummary(ctx, groupID, yesterday); err != nil {
			s.log.Warn().Err(err).Str("chat_id", groupID).Msg("digest delivery failed")
		}
	}
}

// cleanup drops message log rows past retention and prunes idle limiter
// entries.
func (s *Scheduler) cleanup(ctx context.Context) {
	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed, err := s.messages.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("log cleanup failed")
	} else if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("message log trimmed")
	}

	for _, l := range s.limiters {
		l.Prune(24 * time.Hour)
	}
}
