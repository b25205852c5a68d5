package handlers

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/internal/utils"
)

func adminPath(id uint, suffix string) string {
	return "/api/admin/conversations/" + strconv.FormatUint(uint64(id), 10) + suffix
}

func TestAdminAPI_RequiresAdminRole(t *testing.T) {
	env := newRestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/admin/conversations/scoped", 1, utils.RoleUser, gin.H{"type": "team", "team_id": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAPI_EnsureScoped(t *testing.T) {
	env := newRestEnv(t)

	w, resp := env.do(t, http.MethodPost, "/api/admin/conversations/scoped", 9, utils.RoleAdmin, gin.H{"type": "team", "team_id": 3, "title": "Team: Rockets"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	conv := into[models.Conversation](t, resp)
	assert.Equal(t, "Team: Rockets", conv.Title)

	w, resp = env.do(t, http.MethodPost, "/api/admin/conversations/scoped", 9, utils.RoleAdmin, gin.H{"type": "team", "team_id": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, conv.ID, into[models.Conversation](t, resp).ID)

	tests := []struct {
		name string
		body gin.H
	}{
		{"dm is not scoped", gin.H{"type": "dm"}},
		{"team without team_id", gin.H{"type": "team"}},
		{"judges without hackathon_id", gin.H{"type": "judges"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := env.do(t, http.MethodPost, "/api/admin/conversations/scoped", 9, utils.RoleAdmin, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAdminAPI_SyncMembers(t *testing.T) {
	env := newRestEnv(t)
	conv := seedConversation(t, env.db, member{userID: 1, canPost: true})
	members := services.NewMembershipStore(env.db)

	w, resp := env.do(t, http.MethodPost, adminPath(conv.ID, "/members/sync"), 9, utils.RoleAdmin,
		gin.H{"op": "added", "user_ids": []uint{2, 3}})
	require.Equal(t, http.StatusAccepted, w.Code, resp.Message)
	assert.Equal(t, "sync", into[map[string]interface{}](t, resp)["mode"])

	for _, id := range []uint{1, 2, 3} {
		ok, err := members.CanPost(context.Background(), conv.ID, id)
		require.NoError(t, err)
		assert.True(t, ok, "user %d", id)
	}

	w, _ = env.do(t, http.MethodPost, adminPath(conv.ID, "/members/sync"), 9, utils.RoleAdmin,
		gin.H{"op": "removed", "user_ids": []uint{2}})
	require.Equal(t, http.StatusAccepted, w.Code)
	ok, err := members.IsParticipant(context.Background(), conv.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	w, _ = env.do(t, http.MethodPost, adminPath(conv.ID, "/members/sync"), 9, utils.RoleAdmin,
		gin.H{"op": "cleared", "admin_ids": []uint{1}})
	require.Equal(t, http.StatusAccepted, w.Code)
	roster, err := members.Participants(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, uint(1), roster[0].UserID)
	assert.True(t, roster[0].IsAdmin)

	tests := []struct {
		name string
		path string
		body gin.H
		want int
	}{
		{"unknown op", adminPath(conv.ID, "/members/sync"), gin.H{"op": "renamed"}, http.StatusBadRequest},
		{"removed without users", adminPath(conv.ID, "/members/sync"), gin.H{"op": "removed"}, http.StatusBadRequest},
		{"missing conversation", adminPath(conv.ID+10, "/members/sync"), gin.H{"op": "added", "user_ids": []uint{2}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := env.do(t, http.MethodPost, tt.path, 9, utils.RoleAdmin, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAdminAPI_DeleteCascades(t *testing.T) {
	env := newRestEnv(t)
	conv := seedConversation(t, env.db, member{userID: 1, canPost: true})
	w, _ := env.do(t, http.MethodPost, convPath(conv.ID, "/messages"), 1, utils.RoleUser, gin.H{"content": "bye"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, http.MethodDelete, adminPath(conv.ID, ""), 9, utils.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, env.db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&models.ConversationParticipant{}).Where("conversation_id = ?", conv.ID).Count(&n).Error)
	assert.Zero(t, n)

	w, _ = env.do(t, http.MethodDelete, adminPath(conv.ID, ""), 9, utils.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
