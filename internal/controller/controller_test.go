package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"wowserver/internal/logger"
	"wowserver/internal/models"
	"wowserver/internal/services/sessions"
	msgtypes "wowserver/internal/types"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	m.Run()
}

// fakeService keeps one account's characters in memory and records calls.
type fakeService struct {
	admin    bool
	chars    []models.Character
	all      []models.Character
	created  []string
	levels   []models.Character
	saved    *models.PlayerData
	deleted  []string
	loggedIn bool
	failNext error
	calls    []string
}

func (f *fakeService) fail() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeService) Login(_ context.Context, account, password string) (msgtypes.LoginResult, error) {
	if err := f.fail(); err != nil {
		return msgtypes.LoginResult{}, err
	}
	if password != "secret1" {
		return msgtypes.LoginResult{}, errors.New("unauthenticated")
	}
	f.loggedIn = true
	return msgtypes.LoginResult{
		Player:    models.PlayerData{AccountName: account, Characters: append([]models.Character(nil), f.chars...)},
		Admin:     f.admin,
		SessionID: "sess-1",
	}, nil
}

func (f *fakeService) Logout(context.Context) error {
	f.loggedIn = false
	return f.fail()
}

func (f *fakeService) CreateAccount(_ context.Context, account, _ string, _ bool) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.created = append(f.created, account)
	return nil
}

func (f *fakeService) RetrieveAccountCharacters(context.Context, string) ([]models.Character, error) {
	return append([]models.Character(nil), f.chars...), f.fail()
}

func (f *fakeService) RetrieveAllCharacters(context.Context) ([]models.Character, error) {
	return f.all, f.fail()
}

func (f *fakeService) AddCharacterToAccount(_ context.Context, _ string, c models.Character) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.calls = append(f.calls, "add "+c.Name)
	f.chars = append(f.chars, c)
	return nil
}

func (f *fakeService) UpdateCharactersForPlayer(_ context.Context, pd models.PlayerData) error {
	f.calls = append(f.calls, "save")
	f.saved = &pd
	return f.fail()
}

func (f *fakeService) UpdateCharacterLevels(_ context.Context, chars []models.Character) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.levels = chars
	for _, edit := range chars {
		for i := range f.chars {
			if strings.EqualFold(f.chars[i].Name, edit.Name) {
				f.chars[i].Level = edit.Level
			}
		}
	}
	return nil
}

func (f *fakeService) DeleteCharacterFromAccount(_ context.Context, _ string, name string) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func newLoggedIn(t *testing.T, f *fakeService) *Controller {
	t.Helper()
	c := New(f)
	_, err := c.Login(context.Background(), "Player01", "secret1")
	require.NoError(t, err)
	return c
}

func TestOperationsRequireLogin(t *testing.T) {
	c := New(&fakeService{})
	ctx := context.Background()

	_, ok := c.Session()
	assert.False(t, ok)
	assert.False(t, c.CanAddCharacter())

	_, err := c.AccountCharacters(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = c.AllCharacters(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = c.NewCharacterDraft()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, c.AddCharacter(ctx, models.Character{Name: "Thrall", Race: models.Orc, Class: models.Warrior}), ErrNotLoggedIn)
	assert.ErrorIs(t, c.DeleteCharacter(ctx, "Thrall"), ErrNotLoggedIn)
	assert.ErrorIs(t, c.DeactivateCharacter("Thrall"), ErrNotLoggedIn)
	assert.ErrorIs(t, c.ReactivateCharacter("Thrall"), ErrNotLoggedIn)
	assert.ErrorIs(t, c.SaveAccountCharacterData(ctx), ErrNotLoggedIn)
	assert.ErrorIs(t, c.UpdateCharacterLevels(ctx, nil), ErrNotLoggedIn)
	assert.ErrorIs(t, c.Logout(ctx), ErrNotLoggedIn)
}

func TestLoginSetsSession(t *testing.T) {
	f := &fakeService{admin: true}
	c := New(f)

	_, err := c.Login(context.Background(), "Player01", "wrong")
	require.Error(t, err)
	_, ok := c.Session()
	assert.False(t, ok)

	s, err := c.Login(context.Background(), "Player01", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Player01", s.Account)
	assert.Equal(t, sessions.RoleAdmin, s.Role)
	assert.True(t, s.HasRole(sessions.RoleUser))

	require.NoError(t, c.Logout(context.Background()))
	_, ok = c.Session()
	assert.False(t, ok)
	assert.Empty(t, c.Player().Characters)
}

func TestLogoutClearsStateWhenServiceFails(t *testing.T) {
	f := &fakeService{}
	c := newLoggedIn(t, f)
	f.failNext = errors.New("connection closed")

	require.Error(t, c.Logout(context.Background()))
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestCreateAccountValidatesLocally(t *testing.T) {
	f := &fakeService{}
	c := New(f)

	err := c.CreateAccount(context.Background(), "abc", "pw", false)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, f.created)

	require.NoError(t, c.CreateAccount(context.Background(), "Player01", "secret1", false))
	assert.Equal(t, []string{"Player01"}, f.created)
}

func TestNewCharacterDraft(t *testing.T) {
	c := newLoggedIn(t, &fakeService{})
	d, err := c.NewCharacterDraft()
	require.NoError(t, err)
	assert.Equal(t, models.Both, d.ActiveFaction)
	assert.Equal(t, models.Human, d.Character.Race)
	assert.Equal(t, models.Warrior, d.Character.Class)
	assert.Len(t, d.Races, len(models.Races()))
	assert.False(t, d.DeathKnightAllowed)

	c = newLoggedIn(t, &fakeService{chars: []models.Character{
		{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 60, Active: true},
	}})
	d, err = c.NewCharacterDraft()
	require.NoError(t, err)
	assert.Equal(t, models.Horde, d.ActiveFaction)
	assert.Equal(t, models.Orc, d.Character.Race)
	assert.Equal(t, []models.Race{models.Orc, models.Tauren, models.BloodElf}, d.Races)
	assert.True(t, d.DeathKnightAllowed)
}

func TestAddCharacter(t *testing.T) {
	f := &fakeService{}
	c := newLoggedIn(t, f)
	ctx := context.Background()

	require.NoError(t, c.AddCharacter(ctx, models.Character{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 40}))
	require.Len(t, f.chars, 1)
	assert.Equal(t, 1, f.chars[0].Level, "new characters start at level 1")
	assert.True(t, f.chars[0].Active)

	err := c.AddCharacter(ctx, models.Character{Name: "Jaina", Race: models.Human, Class: models.Mage})
	assert.ErrorIs(t, err, models.ErrFactionMismatch)

	err = c.AddCharacter(ctx, models.Character{Name: "Darion", Race: models.Orc, Class: models.DeathKnight})
	assert.ErrorIs(t, err, ErrDeathKnightLocked)

	err = c.AddCharacter(ctx, models.Character{Name: "Bad Name", Race: models.Orc, Class: models.Warrior})
	assert.True(t, models.IsValidation(err))

	assert.Len(t, c.Player().Characters, 1)
	assert.Len(t, f.chars, 1)
}

func TestAddCharacterLimit(t *testing.T) {
	chars := make([]models.Character, models.MaxCharacters)
	for i := range chars {
		chars[i] = models.Character{Name: "Hero" + string(rune('a'+i)), Race: models.Human, Class: models.Warrior, Level: 1, Active: true}
	}
	c := newLoggedIn(t, &fakeService{chars: chars})
	assert.False(t, c.CanAddCharacter())
	err := c.AddCharacter(context.Background(), models.Character{Name: "Extra", Race: models.Human, Class: models.Warrior})
	assert.ErrorIs(t, err, models.ErrCharacterLimit)
}

func TestServiceErrorsLeaveLocalStateAlone(t *testing.T) {
	f := &fakeService{chars: []models.Character{{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true}}}
	c := newLoggedIn(t, f)
	ctx := context.Background()

	f.failNext = errors.New("already_exists")
	require.Error(t, c.AddCharacter(ctx, models.Character{Name: "Rexxar", Race: models.Orc, Class: models.Warrior}))
	assert.Len(t, c.Player().Characters, 1)

	f.failNext = errors.New("not_found")
	require.Error(t, c.DeleteCharacter(ctx, "Thrall"))
	assert.Len(t, c.Player().Characters, 1)
}

func TestDeleteCharacter(t *testing.T) {
	f := &fakeService{chars: []models.Character{{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true}}}
	c := newLoggedIn(t, f)

	assert.ErrorIs(t, c.DeleteCharacter(context.Background(), "Ghost"), models.ErrUnknownCharacter)
	require.NoError(t, c.DeleteCharacter(context.Background(), "thrall"))
	assert.Equal(t, []string{"thrall"}, f.deleted)
	assert.Empty(t, c.Player().Characters)
}

func TestDeactivateReactivateAndSave(t *testing.T) {
	f := &fakeService{chars: []models.Character{
		{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true},
		{Name: "Jaina", Race: models.Human, Class: models.Mage, Level: 1, Active: false},
	}}
	c := newLoggedIn(t, f)

	assert.ErrorIs(t, c.ReactivateCharacter("Jaina"), models.ErrFactionMismatch)
	require.NoError(t, c.DeactivateCharacter("Thrall"))
	require.NoError(t, c.ReactivateCharacter("Jaina"))
	assert.ErrorIs(t, c.ReactivateCharacter("Thrall"), models.ErrFactionMismatch)
	assert.ErrorIs(t, c.DeactivateCharacter("Ghost"), models.ErrUnknownCharacter)

	require.NoError(t, c.SaveAccountCharacterData(context.Background()))
	require.NotNil(t, f.saved)
	assert.Equal(t, "Player01", f.saved.AccountName)
	assert.False(t, f.saved.Characters[0].Active)
	assert.True(t, f.saved.Characters[1].Active)
}

func TestAddCharacterWritesPendingActivationFirst(t *testing.T) {
	f := &fakeService{chars: []models.Character{{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true}}}
	c := newLoggedIn(t, f)
	ctx := context.Background()

	require.NoError(t, c.AddCharacter(ctx, models.Character{Name: "Rexxar", Race: models.Orc, Class: models.Mage}))
	assert.Equal(t, []string{"add Rexxar"}, f.calls, "nothing pending, nothing saved")

	require.NoError(t, c.DeactivateCharacter("Thrall"))
	require.NoError(t, c.DeactivateCharacter("Rexxar"))
	require.NoError(t, c.AddCharacter(ctx, models.Character{Name: "Anduin", Race: models.Human, Class: models.Mage}))
	assert.Equal(t, []string{"add Rexxar", "save", "add Anduin"}, f.calls)
	require.NotNil(t, f.saved)
	assert.False(t, f.saved.Characters[0].Active)

	require.NoError(t, c.AddCharacter(ctx, models.Character{Name: "Varian", Race: models.Human, Class: models.Warrior}))
	assert.Equal(t, "add Varian", f.calls[len(f.calls)-1])
	assert.Len(t, f.calls, 4, "saved changes are not written again")
}

func TestAddCharacterStopsWhenPendingSaveFails(t *testing.T) {
	f := &fakeService{chars: []models.Character{{Name: "Thrall", Race: models.Orc, Class: models.Warrior, Level: 1, Active: true}}}
	c := newLoggedIn(t, f)
	require.NoError(t, c.DeactivateCharacter("Thrall"))

	f.failNext = errors.New("internal")
	require.Error(t, c.AddCharacter(context.Background(), models.Character{Name: "Anduin", Race: models.Human, Class: models.Mage}))
	assert.Equal(t, []string{"save"}, f.calls)
	assert.Len(t, c.Player().Characters, 1)
}

func TestAdminOperations(t *testing.T) {
	user := newLoggedIn(t, &fakeService{})
	_, err := user.AllCharacters(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, user.UpdateCharacterLevels(context.Background(), nil), ErrPermissionDenied)

	f := &fakeService{
		admin: true,
		chars: []models.Character{{Name: "Varian", Race: models.Human, Class: models.Warrior, Level: 1, Active: true, Account: "Player01"}},
		all: []models.Character{
			{Name: "Varian", Race: models.Human, Class: models.Warrior, Level: 1, Active: true, Account: "Player01"},
			{Name: "Darion", Race: models.Orc, Class: models.DeathKnight, Level: 55, Active: true, Account: "Player02"},
		},
	}
	admin := newLoggedIn(t, f)
	all, err := admin.AllCharacters(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = admin.UpdateCharacterLevels(context.Background(), []models.Character{{Name: "Darion", Class: models.DeathKnight, Level: 20}})
	assert.True(t, models.IsValidation(err))
	assert.Nil(t, f.levels)

	require.NoError(t, admin.UpdateCharacterLevels(context.Background(), []models.Character{{Name: "Varian", Class: models.Warrior, Level: 70}}))
	assert.Len(t, f.levels, 1)
	assert.Equal(t, 70, admin.Player().Characters[0].Level, "own characters are reloaded")
}

func TestSetRegion(t *testing.T) {
	c := New(&fakeService{})
	assert.Equal(t, language.AmericanEnglish, c.Region())
	assert.Len(t, c.Regions(), 3)

	tag, err := c.SetRegion("en-AU")
	require.NoError(t, err)
	assert.Equal(t, language.MustParse("en-AU"), tag)
	assert.Equal(t, tag, c.Region())

	tag, err = c.SetRegion("es-MX")
	require.NoError(t, err)
	assert.Equal(t, language.MustParse("es-MX"), tag)

	_, err = c.SetRegion("ja-JP")
	assert.ErrorIs(t, err, ErrUnsupportedRegion)
	_, err = c.SetRegion("not a tag")
	assert.ErrorIs(t, err, ErrUnsupportedRegion)
	assert.Equal(t, language.MustParse("es-MX"), c.Region())
}
