package models

import (
	"errors"
	"strings"
)

var (
	ErrCharacterLimit   = errors.New("account already has the maximum number of characters")
	ErrFactionMismatch  = errors.New("character does not belong to the account's active faction")
	ErrUnknownCharacter = errors.New("character is not on this account")
)

// PlayerData is an account and its ordered characters.
type PlayerData struct {
	AccountName string      `json:"account_name"`
	Characters  []Character `json:"characters"`
}

func (p *PlayerData) CanAddCharacter() bool { return len(p.Characters) < MaxCharacters }

func (p *PlayerData) AddCharacter(c Character) error {
	if !p.CanAddCharacter() {
		return ErrCharacterLimit
	}
	p.Characters = append(p.Characters, c)
	return nil
}

// Character returns the character with the given name, matched case-insensitively.
func (p *PlayerData) Character(name string) (*Character, bool) {
	for i := range p.Characters {
		if strings.EqualFold(p.Characters[i].Name, name) {
			return &p.Characters[i], true
		}
	}
	return nil, false
}

// ActiveFaction is the faction of the first active character, or Both when none is active.
func (p *PlayerData) ActiveFaction() Faction {
	for _, c := range p.Characters {
		if c.Active {
			return c.Faction()
		}
	}
	return Both
}

// MixedActiveFactions reports whether active characters belong to more than one faction.
func (p *PlayerData) MixedActiveFactions() bool {
	active := p.ActiveFaction()
	for _, c := range p.Characters {
		if c.Active && c.Faction() != active {
			return true
		}
	}
	return false
}

// ReactivateCharacter activates the named character if it fits the active faction.
func (p *PlayerData) ReactivateCharacter(name string) error {
	c, ok := p.Character(name)
	if !ok {
		return ErrUnknownCharacter
	}
	active := p.ActiveFaction()
	if active != Both && active != c.Faction() {
		return ErrFactionMismatch
	}
	c.Active = true
	return nil
}

func (p *PlayerData) DeactivateCharacter(name string) error {
	c, ok := p.Character(name)
	if !ok {
		return ErrUnknownCharacter
	}
	c.Active = false
	return nil
}

func (p *PlayerData) DeleteCharacter(name string) bool {
	for i := range p.Characters {
		if strings.EqualFold(p.Characters[i].Name, name) {
			p.Characters = append(p.Characters[:i], p.Characters[i+1:]...)
			return true
		}
	}
	return false
}

// DefaultNewCharacter is the unnamed draft offered on the creation screen.
func (p *PlayerData) DefaultNewCharacter() Character {
	r := Human
	if p.ActiveFaction() == Horde {
		r = Orc
	}
	return Character{Race: r, Class: Warrior, Level: MinLevel, Active: true}
}

// CanCreateDeathKnights reports whether an active character has reached the death knight level.
func (p *PlayerData) CanCreateDeathKnights() bool {
	for _, c := range p.Characters {
		if c.Active && c.Level >= DeathKnightMinLevel {
			return true
		}
	}
	return false
}
