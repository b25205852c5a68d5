package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vortexis/hackhub/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

type member struct {
	userID  uint
	canPost bool
	isAdmin bool
}

// seedConversation creates a team conversation, its users and participant rows.
func seedConversation(t *testing.T, db *gorm.DB, members ...member) *models.Conversation {
	t.Helper()
	conv := models.Conversation{Type: models.ConversationTeam, Title: "Team: Rockets", CreatedBy: 1}
	require.NoError(t, db.Create(&conv).Error)

	for _, m := range members {
		seedUser(t, db, m.userID)
		row := models.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         m.userID,
			IsAdmin:        m.isAdmin,
			CanPost:        true,
		}
		require.NoError(t, db.Create(&row).Error)
		if !m.canPost {
			// gorm skips zero values that carry a default, so write it explicitly
			require.NoError(t, db.Model(&row).Update("can_post", false).Error)
		}
	}
	return &conv
}

func seedUser(t *testing.T, db *gorm.DB, id uint) {
	t.Helper()
	user := models.User{ID: id, Username: usernameFor(id), IsActive: true}
	require.NoError(t, db.FirstOrCreate(&user, models.User{ID: id}).Error)
}

func usernameFor(id uint) string {
	if name, ok := map[uint]string{1: "alice", 2: "bob", 3: "carol", 4: "dave"}[id]; ok {
		return name
	}
	return fmt.Sprintf("user%d", id)
}

// recordingPublisher captures published events per group.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	group string
	event Event
}

func (p *recordingPublisher) Publish(_ context.Context, group string, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{group: group, event: ev})
	return nil
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

var errBrokerDown = errors.New("broker unreachable")
