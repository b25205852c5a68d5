package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vortexis/hackhub/backend/internal/models"
)

func TestMembershipStore_Checks(t *testing.T) {
	db := newTestDB(t)
	conv := seedConversation(t, db, member{userID: 1, canPost: true}, member{userID: 2, canPost: false})
	store := NewMembershipStore(db)
	ctx := context.Background()

	tests := []struct {
		name            string
		userID          uint
		wantParticipant bool
		wantCanPost     bool
	}{
		{"poster", 1, true, true},
		{"read only", 2, true, false},
		{"outsider", 3, false, false},
		{"anonymous", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := store.IsParticipant(ctx, conv.ID, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantParticipant, ok)

			ok, err = store.CanPost(ctx, conv.ID, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCanPost, ok)
		})
	}
}

func TestMembershipStore_Participants(t *testing.T) {
	db := newTestDB(t)
	conv := seedConversation(t, db, member{userID: 2, canPost: true}, member{userID: 1, canPost: true, isAdmin: true})

	rows, err := NewMembershipStore(db).Participants(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint(1), rows[0].UserID, "admins are listed first")
	require.NotNil(t, rows[0].User)
	assert.Equal(t, "alice", rows[0].User.Username)
}

func TestMembershipSync_Added(t *testing.T) {
	db := newTestDB(t)
	conv := seedConversation(t, db, member{userID: 1, canPost: false})
	sync := NewMembershipSync(db)
	ctx := context.Background()

	inserted, err := sync.SyncAdded(ctx, conv.ID, []uint{1, 2, 3, 3}, []uint{3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	var rows []models.ConversationParticipant
	require.NoError(t, db.Where("conversation_id = ?", conv.ID).Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.False(t, rows[0].CanPost, "existing rows are left untouched")
	assert.False(t, rows[1].IsAdmin)
	assert.True(t, rows[1].CanPost)
	assert.True(t, rows[2].IsAdmin)

	inserted, err = sync.SyncAdded(ctx, conv.ID, []uint{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted, "repeat sync is a no-op")
}

func TestMembershipSync_AddedUnknownConversation(t *testing.T) {
	db := newTestDB(t)

	_, err := NewMembershipSync(db).SyncAdded(context.Background(), 404, []uint{1}, nil)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMembershipSync_RemovedAndCleared(t *testing.T) {
	db := newTestDB(t)
	conv := seedConversation(t, db,
		member{userID: 1, canPost: true},
		member{userID: 2, canPost: true},
		member{userID: 3, canPost: true},
	)
	sync := NewMembershipSync(db)
	store := NewMembershipStore(db)
	ctx := context.Background()

	removed, err := sync.SyncRemoved(ctx, conv.ID, []uint{2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	ok, _ := store.IsParticipant(ctx, conv.ID, 2)
	assert.False(t, ok)
	ok, _ = store.IsParticipant(ctx, conv.ID, 1)
	assert.True(t, ok)

	cleared, err := sync.SyncCleared(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
}

func TestMembershipSync_Apply(t *testing.T) {
	db := newTestDB(t)
	conv := seedConversation(t, db, member{userID: 1, canPost: true, isAdmin: true}, member{userID: 2, canPost: true})
	sync := NewMembershipSync(db)
	store := NewMembershipStore(db)
	ctx := context.Background()

	// a cleared judge pool keeps its organizer
	err := sync.Apply(ctx, &MembershipTask{ConversationID: conv.ID, Op: SyncOpCleared, AdminIDs: []uint{1}})
	require.NoError(t, err)

	rows, err := store.Participants(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(1), rows[0].UserID)
	assert.True(t, rows[0].IsAdmin)

	err = sync.Apply(ctx, &MembershipTask{ConversationID: conv.ID, Op: SyncOpAdded, UserIDs: []uint{4}})
	require.NoError(t, err)
	ok, _ := store.CanPost(ctx, conv.ID, 4)
	assert.True(t, ok)

	err = sync.Apply(ctx, &MembershipTask{ConversationID: conv.ID, Op: "renamed"})
	assert.ErrorIs(t, err, ErrInvalidSyncOp)
}
