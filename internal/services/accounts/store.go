package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wowserver/internal/db"
	"wowserver/internal/logger"
	"wowserver/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid account name or password")
	ErrAccountExists      = errors.New("account already exists")
	ErrNameTaken          = errors.New("a character with that name already exists")
	ErrCharacterLimit     = models.ErrCharacterLimit
	ErrNotFound           = errors.New("not found")
	ErrDeathKnightLocked  = errors.New("death knights require an active character at level 55 or higher")
	ErrFactionMismatch    = models.ErrFactionMismatch
)

const characterColumns = "char_name, account_name, level, race, class, is_active"

// Store issues the account and character statements against the service database.
type Store struct {
	db   *sqlx.DB
	cost int
}

func NewStore(d *sqlx.DB, bcryptCost int) *Store {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Store{db: d, cost: bcryptCost}
}

type accountRow struct {
	AccountName  string `db:"account_name"`
	PasswordHash string `db:"password_hash"`
	IsAdmin      bool   `db:"is_admin"`
}

// CreateAccount stores a new account with a bcrypt hash of the password.
func (s *Store) CreateAccount(ctx context.Context, name, password string, isAdmin bool) error {
	if err := errors.Join(models.ValidateAccountName(name), models.ValidatePassword(password)); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = db.Tx(ctx, s.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM accounts WHERE account_name=?`, name); err != nil {
			return err
		}
		if n > 0 {
			return ErrAccountExists
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO accounts (account_name, password_hash, is_admin) VALUES (?,?,?)`, name, string(hash), isAdmin)
		if isDuplicate(err) {
			return ErrAccountExists
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("create account %s: %w", name, err)
	}
	logger.Account().WithFields(logrus.Fields{"account": name, "admin": isAdmin}).Info("account created")
	return nil
}

// EnsureAdmin creates an admin account unless the name is already registered.
func (s *Store) EnsureAdmin(ctx context.Context, name, password string) error {
	err := s.CreateAccount(ctx, name, password, true)
	if errors.Is(err, ErrAccountExists) {
		return nil
	}
	return err
}

// Login checks the credentials and loads the account's characters.
func (s *Store) Login(ctx context.Context, name, password string) (models.PlayerData, bool, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `SELECT account_name, password_hash, is_admin FROM accounts WHERE account_name=?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlayerData{}, false, ErrInvalidCredentials
	}
	if err != nil {
		return models.PlayerData{}, false, fmt.Errorf("login %s: %w", name, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return models.PlayerData{}, false, ErrInvalidCredentials
	}
	chars, err := s.AccountCharacters(ctx, row.AccountName)
	if err != nil {
		return models.PlayerData{}, false, err
	}
	return models.PlayerData{AccountName: strings.TrimSpace(row.AccountName), Characters: chars}, row.IsAdmin, nil
}

// AccountCharacters returns the account's characters in creation order.
func (s *Store) AccountCharacters(ctx context.Context, account string) ([]models.Character, error) {
	chars := []models.Character{}
	err := s.db.SelectContext(ctx, &chars, `SELECT `+characterColumns+` FROM characters WHERE account_name=? ORDER BY seq`, account)
	if err != nil {
		return nil, fmt.Errorf("characters of %s: %w", account, err)
	}
	return chars, nil
}

// AllCharacters returns every character grouped by account.
func (s *Store) AllCharacters(ctx context.Context) ([]models.Character, error) {
	chars := []models.Character{}
	err := s.db.SelectContext(ctx, &chars, `SELECT `+characterColumns+` FROM characters ORDER BY account_name, seq`)
	if err != nil {
		return nil, fmt.Errorf("all characters: %w", err)
	}
	return chars, nil
}

// AddCharacter inserts a new character after the name, limit, death knight and faction checks.
func (s *Store) AddCharacter(ctx context.Context, account string, c models.Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := db.Tx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := accountExists(ctx, tx, account); err != nil {
			return err
		}
		return admitCharacter(ctx, tx, account, c)
	})
	if err != nil {
		logger.Character().WithError(err).WithFields(logrus.Fields{"account": account, "character": c.Name}).Warn("add character failed")
		return fmt.Errorf("add character %s: %w", c.Name, err)
	}
	logger.Character().WithFields(logrus.Fields{
		"account": account, "character": c.Name, "race": c.Race.String(), "class": c.Class.String(), "level": c.Level,
	}).Info("character added")
	return nil
}

// UpdateCharacters saves the player's activation flags. Level, race and class of existing
// characters are left alone; characters not yet stored are created at their starting level
// under the same rules as AddCharacter. The resulting active characters must share a faction.
func (s *Store) UpdateCharacters(ctx context.Context, pd models.PlayerData) error {
	for _, c := range pd.Characters {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("character %q: %w", c.Name, err)
		}
	}
	err := db.Tx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := accountExists(ctx, tx, pd.AccountName); err != nil {
			return err
		}
		var fresh []models.Character
		for _, c := range pd.Characters {
			var owner string
			err := tx.GetContext(ctx, &owner, `SELECT account_name FROM characters WHERE char_name=?`, c.Name)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				c.CompleteNewCharacter()
				fresh = append(fresh, c)
			case err != nil:
				return err
			case !strings.EqualFold(strings.TrimSpace(owner), pd.AccountName):
				return fmt.Errorf("%s: %w", c.Name, ErrNameTaken)
			default:
				if _, err := tx.ExecContext(ctx, `UPDATE characters SET is_active=? WHERE char_name=?`, c.Active, c.Name); err != nil {
					return err
				}
			}
		}
		for _, c := range fresh {
			if err := admitCharacter(ctx, tx, pd.AccountName, c); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}
		saved, err := ownedCharacters(ctx, tx, pd.AccountName)
		if err != nil {
			return err
		}
		if saved.MixedActiveFactions() {
			return ErrFactionMismatch
		}
		return nil
	})
	if err != nil {
		logger.Character().WithError(err).WithField("account", pd.AccountName).Warn("save characters failed")
		return fmt.Errorf("update characters of %s: %w", pd.AccountName, err)
	}
	logger.Character().WithFields(logrus.Fields{"account": pd.AccountName, "count": len(pd.Characters)}).Info("characters saved")
	return nil
}

type classRow struct {
	Name  string `db:"char_name"`
	Class int    `db:"class"`
}

// UpdateCharacterLevels sets the level of each named character, whichever account owns it.
func (s *Store) UpdateCharacterLevels(ctx context.Context, chars []models.Character) error {
	if len(chars) == 0 {
		return nil
	}
	names := make([]string, len(chars))
	for i, c := range chars {
		names[i] = c.Name
	}
	where, args := db.InClause("char_name", names)
	err := db.Tx(ctx, s.db, func(tx *sqlx.Tx) error {
		var rows []classRow
		if err := tx.SelectContext(ctx, &rows, `SELECT char_name, class FROM characters WHERE `+where, args...); err != nil {
			return err
		}
		classes := make(map[string]models.Class, len(rows))
		for _, r := range rows {
			classes[strings.ToLower(strings.TrimSpace(r.Name))] = models.Class(r.Class)
		}
		for _, c := range chars {
			class, ok := classes[strings.ToLower(c.Name)]
			if !ok {
				return fmt.Errorf("%s: %w", c.Name, ErrNotFound)
			}
			if err := models.ValidateLevel(class, c.Level); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE characters SET level=? WHERE char_name=?`, c.Level, c.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update character levels: %w", err)
	}
	for _, c := range chars {
		logger.Admin().WithFields(logrus.Fields{"character": c.Name, "level": c.Level}).Info("level updated")
	}
	return nil
}

// DeleteCharacter removes the named character from the account.
func (s *Store) DeleteCharacter(ctx context.Context, account, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE account_name=? AND char_name=?`, account, name)
	if err != nil {
		return fmt.Errorf("delete character %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete character %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete character %s: %w", name, ErrNotFound)
	}
	logger.Character().WithFields(logrus.Fields{"account": account, "character": name}).Info("character deleted")
	return nil
}

func accountExists(ctx context.Context, tx *sqlx.Tx, account string) error {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM accounts WHERE account_name=?`, account); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", account, ErrNotFound)
	}
	return nil
}

func ownedCharacters(ctx context.Context, tx *sqlx.Tx, account string) (models.PlayerData, error) {
	owned := []models.Character{}
	err := tx.SelectContext(ctx, &owned, `SELECT `+characterColumns+` FROM characters WHERE account_name=? ORDER BY seq`, account)
	return models.PlayerData{AccountName: account, Characters: owned}, err
}

// admitCharacter inserts c for account once the name is free and the account's
// limit, death knight and faction rules allow it.
func admitCharacter(ctx context.Context, tx *sqlx.Tx, account string, c models.Character) error {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM characters WHERE char_name=?`, c.Name); err != nil {
		return err
	}
	if n > 0 {
		return ErrNameTaken
	}
	pd, err := ownedCharacters(ctx, tx, account)
	if err != nil {
		return err
	}
	if !pd.CanAddCharacter() {
		return ErrCharacterLimit
	}
	if c.Class == models.DeathKnight && !pd.CanCreateDeathKnights() {
		return ErrDeathKnightLocked
	}
	if c.Active && !models.RaceInFaction(pd.ActiveFaction(), c.Race) {
		return ErrFactionMismatch
	}
	return insertCharacter(ctx, tx, account, c)
}

func insertCharacter(ctx context.Context, tx *sqlx.Tx, account string, c models.Character) error {
	var seq int
	if err := tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM characters WHERE account_name=?`, account); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO characters (char_name, account_name, seq, level, race, class, is_active) VALUES (?,?,?,?,?,?,?)`,
		c.Name, account, seq, c.Level, int(c.Race), int(c.Class), c.Active)
	if isDuplicate(err) {
		return ErrNameTaken
	}
	return err
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
