package sessions

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wowserver/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	m.Run()
}

func TestHasRole(t *testing.T) {
	var none Session
	assert.False(t, none.HasRole(RoleUser))

	user := Session{ID: "s1", Role: RoleUser}
	assert.True(t, user.HasRole(RoleUser))
	assert.False(t, user.HasRole(RoleAdmin))

	admin := Session{ID: "s2", Role: RoleAdmin}
	assert.True(t, admin.HasRole(RoleUser))
	assert.True(t, admin.HasRole(RoleAdmin))
}

func TestOpenGetClose(t *testing.T) {
	m := NewManager()

	s := m.Open("C1", "Player01", false)
	require.NotEmpty(t, s.ID)
	assert.Equal(t, RoleUser, s.Role)

	got, ok := m.Get("C1")
	require.True(t, ok)
	assert.Equal(t, s, got)

	again := m.Open("C1", "GameMaster", true)
	assert.NotEqual(t, s.ID, again.ID)
	assert.Equal(t, 1, m.Count())
	got, _ = m.Get("C1")
	assert.Equal(t, RoleAdmin, got.Role)

	assert.True(t, m.Close("C1"))
	assert.False(t, m.Close("C1"))
	_, ok = m.Get("C1")
	assert.False(t, ok)
}

func TestRemoveClientIsolatesConnections(t *testing.T) {
	m := NewManager()
	m.Open("C1", "Player01", false)
	m.Open("C2", "Player02", false)

	m.RemoveClient("C1")
	_, ok := m.Get("C1")
	assert.False(t, ok)
	s, ok := m.Get("C2")
	require.True(t, ok)
	assert.Equal(t, "Player02", s.Account)
}

func TestConcurrentOpen(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i%26))
			m.Open(id, "Player01", i%2 == 0)
			m.Get(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, m.Count())
}

func TestInstanceIsShared(t *testing.T) {
	assert.Same(t, Instance(), Instance())
}
