package models

import "fmt"

// Race values are persisted as these integers.
type Race int

const (
	Human    Race = 1
	Gnome    Race = 2
	Worgen   Race = 4
	Orc      Race = 8
	Tauren   Race = 16
	BloodElf Race = 32
)

type Class int

const (
	Warrior     Class = 1
	Druid       Class = 2
	DeathKnight Class = 4
	Mage        Class = 8
)

type Faction int

const (
	Alliance Faction = iota
	Horde
	// Both means no faction has been chosen yet.
	Both
)

var raceNames = map[Race]string{
	Human:    "Human",
	Gnome:    "Gnome",
	Worgen:   "Worgen",
	Orc:      "Orc",
	Tauren:   "Tauren",
	BloodElf: "BloodElf",
}

var classNames = map[Class]string{
	Warrior:     "Warrior",
	Druid:       "Druid",
	DeathKnight: "DeathKnight",
	Mage:        "Mage",
}

var factionNames = map[Faction]string{
	Alliance: "Alliance",
	Horde:    "Horde",
	Both:     "Both",
}

var raceFaction = map[Race]Faction{
	Human:    Alliance,
	Gnome:    Alliance,
	Worgen:   Alliance,
	Orc:      Horde,
	Tauren:   Horde,
	BloodElf: Horde,
}

var illegalClasses = map[Race][]Class{
	Gnome:    {Druid},
	Human:    {Druid},
	Orc:      {Druid},
	BloodElf: {Druid, Warrior},
}

// Races lists every playable race in display order.
func Races() []Race { return []Race{Human, Gnome, Worgen, Orc, Tauren, BloodElf} }

// Classes lists every class in display order.
func Classes() []Class { return []Class{Warrior, Mage, Druid, DeathKnight} }

func (r Race) Valid() bool    { _, ok := raceNames[r]; return ok }
func (c Class) Valid() bool   { _, ok := classNames[c]; return ok }
func (f Faction) Valid() bool { _, ok := factionNames[f]; return ok }

func (r Race) String() string {
	if n, ok := raceNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Race(%d)", int(r))
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

func (f Faction) String() string {
	if n, ok := factionNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Faction(%d)", int(f))
}

func (r Race) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown race %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Race) UnmarshalText(b []byte) error {
	for k, v := range raceNames {
		if v == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown race %q", string(b))
}

func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown class %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	for k, v := range classNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown class %q", string(b))
}

func (f Faction) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown faction %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Faction) UnmarshalText(b []byte) error {
	for k, v := range factionNames {
		if v == string(b) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown faction %q", string(b))
}

// ParseRace accepts the display name of a race.
func ParseRace(s string) (Race, error) {
	var r Race
	err := r.UnmarshalText([]byte(s))
	return r, err
}

func ParseClass(s string) (Class, error) {
	var c Class
	err := c.UnmarshalText([]byte(s))
	return c, err
}

// FactionOf derives the faction a race belongs to.
func FactionOf(r Race) Faction {
	if f, ok := raceFaction[r]; ok {
		return f
	}
	return Horde
}

// RaceInFaction reports whether r may be played in f. Both accepts every race.
func RaceInFaction(f Faction, r Race) bool {
	if f == Both {
		return true
	}
	rf, ok := raceFaction[r]
	return ok && rf == f
}

// RaceClassLegal reports whether the race may take the class.
func RaceClassLegal(r Race, c Class) bool {
	for _, bad := range illegalClasses[r] {
		if bad == c {
			return false
		}
	}
	return true
}

// defaultClass is the class a character falls back to when its race changes under it.
func defaultClass(r Race) Class {
	if r == BloodElf {
		return Mage
	}
	return Warrior
}
