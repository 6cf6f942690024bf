package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/notifications/domain"
	"github.com/clytar/clytar-backend/internal/notifications/repository"
	"github.com/clytar/clytar-backend/internal/store"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
	usersrepo "github.com/clytar/clytar-backend/internal/users/repository"
)

func setup(t *testing.T) (*Service, *usersdomain.User, *usersdomain.User) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore(store.DefaultSchema())
	users := usersrepo.NewTableRepository(st)

	admin := &usersdomain.User{Email: "admin@clytar.io", Role: usersdomain.RoleAdmin}
	member := &usersdomain.User{Email: "member@clytar.io", FullName: "Member"}
	require.NoError(t, users.Create(ctx, admin))
	require.NoError(t, users.Create(ctx, member))

	return NewService(repository.NewTableRepository(st), users, nil), admin, member
}

func TestBroadcast(t *testing.T) {
	svc, admin, member := setup(t)
	ctx := context.Background()

	n, err := svc.Broadcast(ctx, admin, domain.RecipientAll, "  <b>Maintenance</b> at 22:00 &amp; later ")
	require.NoError(t, err)
	assert.Equal(t, "Maintenance at 22:00 & later", n.Message)
	assert.Equal(t, admin.ID, n.SenderID)

	_, err = svc.Broadcast(ctx, admin, member.ID, "Your plan was upgraded")
	require.NoError(t, err)

	list, err := svc.ListFor(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = svc.ListFor(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.RecipientAll, list[0].RecipientID)
}

func TestBroadcast_Rejects(t *testing.T) {
	svc, admin, member := setup(t)
	ctx := context.Background()

	_, err := svc.Broadcast(ctx, member, domain.RecipientAll, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Broadcast(ctx, nil, domain.RecipientAll, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Broadcast(ctx, admin, "nobody", "hi")
	assert.ErrorIs(t, err, apperr.ErrUnknownUser)

	_, err = svc.Broadcast(ctx, admin, "", "hi")
	assert.ErrorIs(t, err, apperr.ErrMissingField)

	_, err = svc.Broadcast(ctx, admin, domain.RecipientAll, "<script>alert(1)</script>")
	require.ErrorIs(t, err, apperr.ErrMissingField)
	stage, field := apperr.Fields(err)
	assert.Equal(t, StageBroadcast, stage)
	assert.Equal(t, "message", field)

	_, err = svc.Broadcast(ctx, admin, domain.RecipientAll, strings.Repeat("x", maxMessageLen+1))
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)
}

func TestBroadcast_LengthCountsCharacters(t *testing.T) {
	svc, admin, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Broadcast(ctx, admin, domain.RecipientAll, strings.Repeat("é", maxMessageLen))
	require.NoError(t, err)

	_, err = svc.Broadcast(ctx, admin, domain.RecipientAll, "x"+strings.Repeat("é", maxMessageLen))
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, utf8.ValidString(verr.Value))
	assert.Equal(t, "x"+strings.Repeat("é", 31)+"...", verr.Value)
	assert.True(t, utf8.ValidString(err.Error()))
}

func TestBroadcast_UnknownRecipientNamesStage(t *testing.T) {
	svc, admin, _ := setup(t)

	_, err := svc.Broadcast(context.Background(), admin, "nobody", "hi")
	require.ErrorIs(t, err, apperr.ErrUnknownUser)
	stage, _ := apperr.Fields(err)
	assert.Equal(t, StageBroadcast, stage)
}

func TestFeedback(t *testing.T) {
	svc, admin, member := setup(t)
	ctx := context.Background()

	list, err := svc.ListFeedback(ctx, admin)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	f, err := svc.SubmitFeedback(ctx, member.ID, " Member@Clytar.io ", "Please add LinkedIn carousels")
	require.NoError(t, err)
	assert.Equal(t, "member@clytar.io", f.Email)

	_, err = svc.SubmitFeedback(ctx, member.ID, member.Email, "   ")
	assert.ErrorIs(t, err, apperr.ErrMissingField)

	list, err = svc.ListFeedback(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.ID, list[0].ID)

	_, err = svc.ListFeedback(ctx, member)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
