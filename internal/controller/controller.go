package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wowserver/internal/logger"
	"wowserver/internal/models"
	"wowserver/internal/services/sessions"
	msgtypes "wowserver/internal/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnsupportedRegion = errors.New("unsupported region")
	ErrDeathKnightLocked = errors.New("death knights require an active character at level 55 or higher")
)

// Service is the remote account service as seen from the client.
type Service interface {
	Login(ctx context.Context, account, password string) (msgtypes.LoginResult, error)
	Logout(ctx context.Context) error
	CreateAccount(ctx context.Context, account, password string, admin bool) error
	RetrieveAccountCharacters(ctx context.Context, account string) ([]models.Character, error)
	RetrieveAllCharacters(ctx context.Context) ([]models.Character, error)
	AddCharacterToAccount(ctx context.Context, account string, c models.Character) error
	UpdateCharactersForPlayer(ctx context.Context, pd models.PlayerData) error
	UpdateCharacterLevels(ctx context.Context, chars []models.Character) error
	DeleteCharacterFromAccount(ctx context.Context, account, name string) error
}

// Draft is the starting point offered on the character creation screen.
type Draft struct {
	Character          models.Character
	ActiveFaction      models.Faction
	Races              []models.Race
	DeathKnightAllowed bool
}

var regions = []language.Tag{
	language.AmericanEnglish,
	language.MustParse("en-AU"),
	language.MustParse("es-MX"),
}

var regionMatcher = language.NewMatcher(regions)

// Controller drives the account and character workflows of one client.
type Controller struct {
	svc Service

	mu      sync.Mutex
	session sessions.Session
	player  models.PlayerData
	// dirty is set while activation changes exist only in player.
	dirty  bool
	region language.Tag
}

func New(svc Service) *Controller {
	return &Controller{svc: svc, region: regions[0]}
}

func (c *Controller) requireRole(r sessions.Role) (sessions.Session, error) {
	if c.session.ID == "" {
		return sessions.Session{}, ErrNotLoggedIn
	}
	if !c.session.HasRole(r) {
		return sessions.Session{}, ErrPermissionDenied
	}
	return c.session, nil
}

// Session returns the current session; ok is false when logged out.
func (c *Controller) Session() (sessions.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session.ID != ""
}

// Player returns a copy of the logged-in account and its characters.
func (c *Controller) Player() models.PlayerData {
	c.mu.Lock()
	defer c.mu.Unlock()
	pd := c.player
	pd.Characters = append([]models.Character(nil), c.player.Characters...)
	return pd
}

// CreateAccount checks the name and password locally before asking the service.
func (c *Controller) CreateAccount(ctx context.Context, account, password string, admin bool) error {
	if err := errors.Join(models.ValidateAccountName(account), models.ValidatePassword(password)); err != nil {
		return err
	}
	return c.svc.CreateAccount(ctx, account, password, admin)
}

func (c *Controller) Login(ctx context.Context, account, password string) (sessions.Session, error) {
	res, err := c.svc.Login(ctx, account, password)
	if err != nil {
		return sessions.Session{}, err
	}
	role := sessions.RoleUser
	if res.Admin {
		role = sessions.RoleAdmin
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sessions.Session{ID: res.SessionID, Account: res.Player.AccountName, Role: role, CreatedAt: time.Now()}
	c.player = res.Player
	c.dirty = false
	logger.Account().WithFields(logrus.Fields{"account": c.session.Account, "role": role.String()}).Info("logged in")
	return c.session, nil
}

// Logout ends the session locally even when the service call fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.requireRole(sessions.RoleUser); err != nil {
		return err
	}
	err := c.svc.Logout(ctx)
	logger.Account().WithField("account", c.session.Account).Info("logged out")
	c.session = sessions.Session{}
	c.player = models.PlayerData{}
	c.dirty = false
	return err
}

// AccountCharacters reloads the account's characters from the service.
func (c *Controller) AccountCharacters(ctx context.Context) ([]models.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.requireRole(sessions.RoleUser)
	if err != nil {
		return nil, err
	}
	return c.reloadLocked(ctx, s)
}

func (c *Controller) reloadLocked(ctx context.Context, s sessions.Session) ([]models.Character, error) {
	chars, err := c.svc.RetrieveAccountCharacters(ctx, s.Account)
	if err != nil {
		return nil, err
	}
	c.player.Characters = chars
	c.dirty = false
	return append([]models.Character(nil), chars...), nil
}

func (c *Controller) AllCharacters(ctx context.Context) ([]models.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.requireRole(sessions.RoleAdmin); err != nil {
		return nil, err
	}
	return c.svc.RetrieveAllCharacters(ctx)
}

func (c *Controller) CanAddCharacter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID != "" && c.player.CanAddCharacter()
}

// NewCharacterDraft returns the default character for the account's active faction.
func (c *Controller) NewCharacterDraft() (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.requireRole(sessions.RoleUser); err != nil {
		return Draft{}, err
	}
	faction := c.player.ActiveFaction()
	var races []models.Race
	for _, r := range models.Races() {
		if models.RaceInFaction(faction, r) {
			races = append(races, r)
		}
	}
	return Draft{
		Character:          c.player.DefaultNewCharacter(),
		ActiveFaction:      faction,
		Races:              races,
		DeathKnightAllowed: c.player.CanCreateDeathKnights(),
	}, nil
}

// AddCharacter gives the character its starting level and creates it on the account.
// Unsaved activation changes are written first so the service sees the same active faction.
func (c *Controller) AddCharacter(ctx context.Context, ch models.Character) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.requireRole(sessions.RoleUser)
	if err != nil {
		return err
	}
	if !c.player.CanAddCharacter() {
		return models.ErrCharacterLimit
	}
	ch.Active = true
	ch.CompleteNewCharacter()
	if err := ch.Validate(); err != nil {
		return err
	}
	if ch.Class == models.DeathKnight && !c.player.CanCreateDeathKnights() {
		return ErrDeathKnightLocked
	}
	if !models.RaceInFaction(c.player.ActiveFaction(), ch.Race) {
		return models.ErrFactionMismatch
	}
	if c.dirty {
		if err := c.saveLocked(ctx, s); err != nil {
			return err
		}
	}
	if err := c.svc.AddCharacterToAccount(ctx, s.Account, ch); err != nil {
		return err
	}
	ch.Account = s.Account
	return c.player.AddCharacter(ch)
}

func (c *Controller) DeleteCharacter(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.requireRole(sessions.RoleUser)
	if err != nil {
		return err
	}
	if _, ok := c.player.Character(name); !ok {
		return models.ErrUnknownCharacter
	}
	if err := c.svc.DeleteCharacterFromAccount(ctx, s.Account, name); err != nil {
		return err
	}
	c.player.DeleteCharacter(name)
	return nil
}

// DeactivateCharacter changes the local copy only; SaveAccountCharacterData persists it.
func (c *Controller) DeactivateCharacter(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.requireRole(sessions.RoleUser); err != nil {
		return err
	}
	if err := c.player.DeactivateCharacter(name); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

func (c *Controller) ReactivateCharacter(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.requireRole(sessions.RoleUser); err != nil {
		return err
	}
	if err := c.player.ReactivateCharacter(name); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

// SaveAccountCharacterData writes every local character change back to the service.
func (c *Controller) SaveAccountCharacterData(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.requireRole(sessions.RoleUser)
	if err != nil {
		return err
	}
	return c.saveLocked(ctx, s)
}

func (c *Controller) saveLocked(ctx context.Context, s sessions.Session) error {
	pd := c.player
	pd.AccountName = s.Account
	if err := c.svc.UpdateCharactersForPlayer(ctx, pd); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// UpdateCharacterLevels applies admin level edits and reloads the admin's own characters.
func (c *Controller) UpdateCharacterLevels(ctx context.Context, chars []models.Character) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.requireRole(sessions.RoleAdmin)
	if err != nil {
		return err
	}
	for _, ch := range chars {
		if err := models.ValidateLevel(ch.Class, ch.Level); err != nil {
			return fmt.Errorf("%s: %w", ch.Name, err)
		}
	}
	if err := c.svc.UpdateCharacterLevels(ctx, chars); err != nil {
		return err
	}
	logger.Admin().WithFields(logrus.Fields{"admin": s.Account, "count": len(chars)}).Info("level edits sent")
	_, err = c.reloadLocked(ctx, s)
	return err
}

// Regions lists the selectable regions.
func (c *Controller) Regions() []language.Tag {
	return append([]language.Tag(nil), regions...)
}

func (c *Controller) Region() language.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region
}

// SetRegion picks the supported region closest to the given BCP 47 tag.
func (c *Controller) SetRegion(tag string) (language.Tag, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %v", ErrUnsupportedRegion, err)
	}
	_, idx, conf := regionMatcher.Match(t)
	if conf == language.No {
		return language.Und, fmt.Errorf("%w: %s", ErrUnsupportedRegion, tag)
	}
	c.mu.Lock()
	c.region = regions[idx]
	c.mu.Unlock()
	return regions[idx], nil
}
