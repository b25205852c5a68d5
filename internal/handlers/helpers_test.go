package handlers

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handler-testing")
}

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
}

func seedConversation(t *testing.T, db *gorm.DB, members ...member) *models.Conversation {
	t.Helper()
	conv := models.Conversation{Type: models.ConversationTeam, Title: "Team: Rockets", CreatedBy: 1}
	require.NoError(t, db.Create(&conv).Error)

	for _, m := range members {
		user := models.User{ID: m.userID, Username: usernameFor(m.userID), IsActive: true}
		require.NoError(t, db.FirstOrCreate(&user, models.User{ID: m.userID}).Error)

		row := models.ConversationParticipant{ConversationID: conv.ID, UserID: m.userID, CanPost: true}
		require.NoError(t, db.Create(&row).Error)
		if !m.canPost {
			require.NoError(t, db.Model(&row).Update("can_post", false).Error)
		}
	}
	return &conv
}

func usernameFor(id uint) string {
	if name, ok := map[uint]string{1: "alice", 2: "bob", 3: "carol", 4: "dave"}[id]; ok {
		return name
	}
	return fmt.Sprintf("user%d", id)
}

func tokenFor(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(userID, usernameFor(userID), role, 1)
	require.NoError(t, err)
	return token
}
