package services

import (
	"context"
	"time"

	"github.com/vortexis/hackhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService maintains the local identity projection used for sender usernames.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// EnsureFromClaims upserts the user row for a verified token so usernames resolve
// even for accounts this service has never seen.
func (s *UserService) EnsureFromClaims(ctx context.Context, userID uint, username string) error {
	if userID == 0 || username == "" {
		return nil
	}
	user := models.User{ID: userID, Username: username, IsActive: true}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":   username,
			"updated_at": time.Now(),
		}),
	}).Create(&user).Error
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
