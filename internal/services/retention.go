package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const retentionLockName = "deleted_content_scrub"

// RetentionScrubber blanks the content of messages soft-deleted longer ago than the
// retention window. Rows stay in place so history keeps their position.
type RetentionScrubber struct {
	db        *gorm.DB
	retention time.Duration
	schedule  string
	instance  string
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewRetentionScrubber(db *gorm.DB, retentionDays int, schedule string) *RetentionScrubber {
	host, _ := os.Hostname()
	return &RetentionScrubber{
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		instance:  fmt.Sprintf("%s:%d", host, os.Getpid()),
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Component("retention"),
	}
}

// Enabled is false for a zero window, which keeps deleted content forever.
func (s *RetentionScrubber) Enabled() bool {
	return s.retention > 0
}

func (s *RetentionScrubber) Start() error {
	if !s.Enabled() {
		s.log.Info().Msg("deleted content retained, scrubber disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	entryID, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("scrub failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scrub schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron, s.entryID = c, entryID
	s.log.Info().Str("schedule", s.schedule).Dur("retention", s.retention).Msg("scrubber scheduled")
	return nil
}

func (s *RetentionScrubber) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce claims the current hour's run and scrubs. It returns 0 without error when another
// instance already holds the claim.
func (s *RetentionScrubber) RunOnce(ctx context.Context) (int64, error) {
	now := s.now()
	claimed, err := s.claim(ctx, now)
	if err != nil {
		return 0, err
	}
	if !claimed {
		s.log.Debug().Msg("scrub already claimed by another instance")
		return 0, nil
	}
	return s.Scrub(ctx, now.Add(-s.retention))
}

// Scrub blanks content of messages deleted before cutoff.
func (s *RetentionScrubber) Scrub(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("is_deleted = ? AND deleted_on IS NOT NULL AND deleted_on < ? AND content <> ?", true, cutoff, "").
		Update("content", "")
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info().Int64("scrubbed", res.RowsAffected).Time("cutoff", cutoff).Msg("deleted content scrubbed")
	}
	return res.RowsAffected, nil
}

func (s *RetentionScrubber) claim(ctx context.Context, now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  retentionLockName,
		LockKey:   now.Format("2006-01-02T15"),
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	// expired claims are history only
	s.db.WithContext(ctx).Where("lock_name = ? AND expires_at < ?", retentionLockName, now.Add(-24*time.Hour)).
		Delete(&models.SchedulerLock{})
	return res.RowsAffected > 0, nil
}
