package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"wowserver/internal/config"
	"wowserver/internal/controller"
	"wowserver/internal/db"
	"wowserver/internal/logger"
	"wowserver/internal/models"
	"wowserver/internal/server"
	"wowserver/internal/services/accounts"
	"wowserver/internal/services/sessions"
	msgtypes "wowserver/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	m.Run()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func startService(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		DBDriver:          "sqlite",
		SQLitePath:        filepath.Join(t.TempDir(), "wow.db"),
		HeartbeatInterval: time.Hour,
		HeartbeatTimeout:  time.Hour,
		LoginRate:         1,
		LoginBurst:        50,
	}
	d, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, db.EnsureSchema(context.Background(), d))
	store := accounts.NewStore(d, bcrypt.MinCost)
	require.NoError(t, store.EnsureAdmin(context.Background(), "GameMaster", "letmein1"))

	hub := server.NewHub(cfg, store, sessions.NewManager())
	srv := httptest.NewServer(server.NewRouter(hub, nil))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return srv
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientAgainstService(t *testing.T) {
	srv := startService(t)
	c := dial(t, wsURL(srv))
	assert.NotEmpty(t, c.ID)
	ctx := context.Background()

	require.NoError(t, c.CreateAccount(ctx, "Player01", "secret1", false))
	assert.ErrorIs(t, c.CreateAccount(ctx, "Player01", "secret1", false), ErrAlreadyExists)

	_, err := c.RetrieveAccountCharacters(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	res, err := c.Login(ctx, "Player01", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Player01", res.Player.AccountName)

	thrall := models.Character{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true}
	require.NoError(t, c.AddCharacterToAccount(ctx, "Player01", thrall))
	err = c.AddCharacterToAccount(ctx, "Player01", models.Character{Name: "Darion", Race: models.Orc, Class: models.DeathKnight, Level: 55, Active: true})
	assert.ErrorIs(t, err, ErrFailedPrecondition)

	chars, err := c.RetrieveAccountCharacters(ctx, "Player01")
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, thrall.Name, chars[0].Name)

	_, err = c.RetrieveAllCharacters(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, c.UpdateCharacterLevels(ctx, chars), ErrPermissionDenied)

	chars[0].Active = false
	require.NoError(t, c.UpdateCharactersForPlayer(ctx, models.PlayerData{AccountName: "Player01", Characters: chars}))
	require.NoError(t, c.DeleteCharacterFromAccount(ctx, "Player01", "Thrall"))
	assert.ErrorIs(t, c.DeleteCharacterFromAccount(ctx, "Player01", "Thrall"), ErrNotFound)
	require.NoError(t, c.Logout(ctx))

	admin := dial(t, wsURL(srv))
	_, err = admin.Login(ctx, "GameMaster", "letmein1")
	require.NoError(t, err)
	all, err := admin.RetrieveAllCharacters(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestControllerSwitchesFactionAfterDeactivating(t *testing.T) {
	srv := startService(t)
	ctl := controller.New(dial(t, wsURL(srv)))
	ctx := context.Background()

	require.NoError(t, ctl.CreateAccount(ctx, "Player01", "secret1", false))
	_, err := ctl.Login(ctx, "Player01", "secret1")
	require.NoError(t, err)
	require.NoError(t, ctl.AddCharacter(ctx, models.Character{Name: "Thrall", Race: models.Orc, Class: models.Warrior}))

	require.NoError(t, ctl.DeactivateCharacter("Thrall"))
	require.NoError(t, ctl.AddCharacter(ctx, models.Character{Name: "Anduin", Race: models.Human, Class: models.Mage}))

	chars, err := ctl.AccountCharacters(ctx)
	require.NoError(t, err)
	require.Len(t, chars, 2)
	assert.False(t, chars[0].Active)
	assert.True(t, chars[1].Active)
	assert.Equal(t, models.Alliance, chars[1].Faction())
}

// fakeServer acks the connection and hands it to fn.
func fakeServer(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(msgtypes.ConnectionAck{Code: 200, Message: "OK", Type: msgtypes.MsgTypeConnectionAck, ClientID: "ABCD1234-EF56"})
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAnswersHeartbeats(t *testing.T) {
	got := make(chan msgtypes.Heartbeat, 1)
	srv := fakeServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(msgtypes.Heartbeat{Type: msgtypes.MsgTypeHeartbeat, ClientID: "ABCD1234-EF56"})
		var hb msgtypes.Heartbeat
		if err := conn.ReadJSON(&hb); err == nil {
			got <- hb
		}
		_, _, _ = conn.ReadMessage()
	})
	c := dial(t, wsURL(srv))
	assert.Equal(t, "ABCD1234-EF56", c.ID)

	select {
	case hb := <-got:
		assert.Equal(t, msgtypes.MsgTypeHeartbeatResponse, hb.Type)
		assert.Equal(t, c.ID, hb.ClientID)
	case <-time.After(3 * time.Second):
		t.Fatal("no heartbeat response")
	}
}

func TestCallHonoursContext(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := dial(t, wsURL(srv))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Logout(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallFailsWhenConnectionDrops(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	c := dial(t, wsURL(srv))

	err := c.Logout(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	<-c.Done()
	assert.ErrorIs(t, c.Logout(context.Background()), ErrClosed)
}

func TestDialRejectsUnexpectedAck(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(msgtypes.ConnectionAck{Code: 503, Type: msgtypes.MsgTypeConnectionAck})
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv))
	require.Error(t, err)
}

func TestErrorMatchesByCode(t *testing.T) {
	err := error(&Error{Code: msgtypes.CodeNotFound, Message: "delete character Ghost: not found"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInternal)
	assert.Equal(t, "not_found: delete character Ghost: not found", err.Error())

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, msgtypes.CodeNotFound, e.Code)
}
