package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/notify"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type notificationFixture struct {
	handler  *NotificationHandler
	subs     *fakeSubRepo
	users    *fakeUserRepo
	sender   *fakeSender
	echoInst *echo.Echo
	user     *models.User
	areaID   primitive.ObjectID
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()

	subs := newFakeSubRepo()
	users := newFakeUserRepo()
	sender := &fakeSender{}
	dispatcher := notify.NewDispatcher(subs, sender, zerolog.Nop())

	user := users.add(&models.User{Name: "Alumno", Email: "al@ipn.mx", Role: models.RoleStudent, Verified: true})

	return &notificationFixture{
		handler:  NewNotificationHandler(subs, users, dispatcher),
		subs:     subs,
		users:    users,
		sender:   sender,
		echoInst: echo.New(),
		user:     user,
		areaID:   primitive.NewObjectID(),
	}
}

func TestSubscribe(t *testing.T) {
	t.Run("registers the subscription and mirrors the area on the account", func(t *testing.T) {
		f := newNotificationFixture(t)

		c, rec := newJSONContext(f.echoInst, http.MethodPost, "/api/notifications/subscribe",
			`{"area":"`+f.areaID.Hex()+`","subscription":"token-1"}`)
		withClaims(c, f.user.ID, models.RoleStudent)

		require.NoError(t, f.handler.Subscribe(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		sub, ok := f.subs.subs[subKey(f.user.ID, f.areaID)]
		require.True(t, ok)
		assert.Equal(t, "token-1", sub.Token)
		assert.Equal(t, []string{f.areaID.Hex()}, f.users.users[f.user.ID.Hex()].Subscribed)
	})

	t.Run("subscribing again refreshes the token instead of duplicating", func(t *testing.T) {
		f := newNotificationFixture(t)

		for _, token := range []string{"token-old", "token-new"} {
			c, _ := newJSONContext(f.echoInst, http.MethodPost, "/api/notifications/subscribe",
				`{"area":"`+f.areaID.Hex()+`","subscription":"`+token+`"}`)
			withClaims(c, f.user.ID, models.RoleStudent)
			require.NoError(t, f.handler.Subscribe(c))
		}

		assert.Len(t, f.subs.subs, 1)
		assert.Equal(t, "token-new", f.subs.subs[subKey(f.user.ID, f.areaID)].Token)
		assert.Equal(t, []string{f.areaID.Hex()}, f.users.users[f.user.ID.Hex()].Subscribed)
	})

	t.Run("requires area and token", func(t *testing.T) {
		f := newNotificationFixture(t)

		c, _ := newJSONContext(f.echoInst, http.MethodPost, "/api/notifications/subscribe",
			`{"area":"`+f.areaID.Hex()+`"}`)
		withClaims(c, f.user.ID, models.RoleStudent)

		err := f.handler.Subscribe(c)
		assert.Equal(t, http.StatusBadRequest, httpCode(err))
	})
}

func TestUnsubscribe(t *testing.T) {
	t.Run("removes the subscription and the mirrored area", func(t *testing.T) {
		f := newNotificationFixture(t)
		_, err := f.subs.Upsert(context.Background(), f.user.ID, f.areaID, "token-1")
		require.NoError(t, err)
		require.NoError(t, f.users.AddSubscribedArea(context.Background(), f.user.ID.Hex(), f.areaID.Hex()))

		c, rec := newJSONContext(f.echoInst, http.MethodDelete, "/api/notifications/unsubscribe",
			`{"area":"`+f.areaID.Hex()+`"}`)
		withClaims(c, f.user.ID, models.RoleStudent)

		require.NoError(t, f.handler.Unsubscribe(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.subs.subs)
		assert.Empty(t, f.users.users[f.user.ID.Hex()].Subscribed)
	})

	t.Run("without a prior subscription is not found and leaves the account untouched", func(t *testing.T) {
		f := newNotificationFixture(t)
		other := primitive.NewObjectID()
		require.NoError(t, f.users.AddSubscribedArea(context.Background(), f.user.ID.Hex(), other.Hex()))

		c, _ := newJSONContext(f.echoInst, http.MethodDelete, "/api/notifications/unsubscribe",
			`{"area":"`+f.areaID.Hex()+`"}`)
		withClaims(c, f.user.ID, models.RoleStudent)

		err := f.handler.Unsubscribe(c)
		assert.Equal(t, http.StatusNotFound, httpCode(err))
		assert.Equal(t, []string{other.Hex()}, f.users.users[f.user.ID.Hex()].Subscribed)
	})
}

func TestSend(t *testing.T) {
	t.Run("fans the payload out to the area's subscribers", func(t *testing.T) {
		f := newNotificationFixture(t)
		_, err := f.subs.Upsert(context.Background(), f.user.ID, f.areaID, "token-1")
		require.NoError(t, err)
		otherUser := primitive.NewObjectID()
		_, err = f.subs.Upsert(context.Background(), otherUser, f.areaID, "token-2")
		require.NoError(t, err)
		// A subscriber of another area is never touched.
		_, err = f.subs.Upsert(context.Background(), otherUser, primitive.NewObjectID(), "token-3")
		require.NoError(t, err)

		c, rec := newJSONContext(f.echoInst, http.MethodPost, "/api/notifications/send",
			`{"area":"`+f.areaID.Hex()+`","payload":"{\"title\":\"Aviso\",\"body\":\"Contenido\"}"}`)
		withClaims(c, f.user.ID, models.RoleAdmin)

		require.NoError(t, f.handler.Send(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{"token-1", "token-2"}, f.sender.sentTokens())
		assert.Contains(t, rec.Body.String(), `"sent":2`)
	})

	t.Run("rejects a non-JSON payload", func(t *testing.T) {
		f := newNotificationFixture(t)

		c, _ := newJSONContext(f.echoInst, http.MethodPost, "/api/notifications/send",
			`{"area":"`+f.areaID.Hex()+`","payload":"not json"}`)
		withClaims(c, f.user.ID, models.RoleAdmin)

		err := f.handler.Send(c)
		assert.Equal(t, http.StatusBadRequest, httpCode(err))
	})
}
