package models

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	MaxCharacters       = 10
	MinLevel            = 1
	MaxLevel            = 85
	DeathKnightMinLevel = 55

	minCharacterName = 1
	maxCharacterName = 20
	minAccountName   = 5
	maxAccountName   = 30
)

var (
	lettersOnly  = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// ValidationError describes one rule a field failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// IsValidation reports whether err carries at least one ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Character is a playable entity owned by an account. Faction is derived from Race.
type Character struct {
	Name    string `json:"name" db:"char_name"`
	Race    Race   `json:"race" db:"race"`
	Class   Class  `json:"class" db:"class"`
	Level   int    `json:"level" db:"level"`
	Active  bool   `json:"active" db:"is_active"`
	Account string `json:"account,omitempty" db:"account_name"`
}

// NewCharacter builds a character, rejecting any rule violation.
func NewCharacter(name string, race Race, class Class, level int, active bool) (Character, error) {
	c := Character{Name: name, Race: race, Class: class, Level: level, Active: active}
	if err := c.Validate(); err != nil {
		return Character{}, err
	}
	return c, nil
}

func (c Character) Faction() Faction { return FactionOf(c.Race) }

// SetRace changes the race. A class that becomes illegal is replaced by the race default.
func (c *Character) SetRace(r Race) {
	c.Race = r
	if !RaceClassLegal(c.Race, c.Class) {
		c.Class = defaultClass(c.Race)
	}
}

// SetClass changes the class unless the combination with the current race is illegal.
func (c *Character) SetClass(cl Class) bool {
	if !cl.Valid() || !RaceClassLegal(c.Race, cl) {
		return false
	}
	c.Class = cl
	return true
}

func (c *Character) SetLevel(level int) error {
	if err := validateLevel(c.Class, level); err != nil {
		return err
	}
	c.Level = level
	return nil
}

func (c *Character) SetName(name string) error {
	if err := ValidateCharacterName(name); err != nil {
		return err
	}
	c.Name = name
	return nil
}

// CompleteNewCharacter sets the starting level for the class.
func (c *Character) CompleteNewCharacter() {
	if c.Class == DeathKnight {
		c.Level = DeathKnightMinLevel
		return
	}
	c.Level = MinLevel
}

// Validate returns every rule the character violates, joined.
func (c Character) Validate() error {
	var errs []error
	if err := ValidateCharacterName(c.Name); err != nil {
		errs = append(errs, err)
	}
	if !c.Race.Valid() {
		errs = append(errs, invalid("race", "unknown race %d", int(c.Race)))
	}
	if !c.Class.Valid() {
		errs = append(errs, invalid("class", "unknown class %d", int(c.Class)))
	}
	if c.Race.Valid() && c.Class.Valid() && !RaceClassLegal(c.Race, c.Class) {
		errs = append(errs, invalid("class", "%s cannot be a %s", c.Race, c.Class))
	}
	if err := validateLevel(c.Class, c.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Character) String() string {
	return fmt.Sprintf("%s  -  %s\nLevel %d %s", c.Name, c.Race, c.Level, c.Class)
}

func validateLevel(class Class, level int) error {
	if level < MinLevel || level > MaxLevel {
		return invalid("level", "character level must be between %d and %d", MinLevel, MaxLevel)
	}
	if class == DeathKnight && level < DeathKnightMinLevel {
		return invalid("level", "death knight level must be between %d and %d", DeathKnightMinLevel, MaxLevel)
	}
	return nil
}

// ValidateLevel checks level bounds for the given class.
func ValidateLevel(class Class, level int) error { return validateLevel(class, level) }

func ValidateCharacterName(name string) error {
	if n := len(name); n < minCharacterName || n > maxCharacterName {
		return invalid("name", "character names must be %d-%d characters long", minCharacterName, maxCharacterName)
	}
	if !lettersOnly.MatchString(name) {
		return invalid("name", "special characters and numbers are not allowed in character names")
	}
	return nil
}

func ValidateAccountName(name string) error {
	if n := len(name); n < minAccountName || n > maxAccountName {
		return invalid("account_name", "account name must be %d-%d characters long", minAccountName, maxAccountName)
	}
	if !alphanumeric.MatchString(name) {
		return invalid("account_name", "special characters and spaces are not allowed in the account name")
	}
	return nil
}

func ValidatePassword(password string) error {
	if n := len(password); n < minAccountName || n > maxAccountName {
		return invalid("password", "password must be %d-%d characters long", minAccountName, maxAccountName)
	}
	if !alphanumeric.MatchString(password) {
		return invalid("password", "special characters and spaces are not allowed in your password")
	}
	return nil
}
