package input

import "strings"

// Button is a single attack button bit.
type Button uint8

const (
	LP Button = 1 << iota
	MP
	HP
	LK
	MK
	HK
)

// AllButtons masks the six attack buttons. Higher raw bits are ignored.
const AllButtons = LP | MP | HP | LK | MK | HK

// ButtonSet is a bitfield of buttons.
type ButtonSet uint8

// FromRaw keeps only the six attack button bits.
func FromRaw(raw int) ButtonSet {
	return ButtonSet(uint8(raw) & uint8(AllButtons))
}

func (s ButtonSet) Has(b Button) bool { return uint8(s)&uint8(b) != 0 }

// HasAll reports whether every bit of other is set.
func (s ButtonSet) HasAll(other ButtonSet) bool { return s&other == other }

func (s ButtonSet) Empty() bool { return s == 0 }

// Punches and Kicks split the set by button family.
func (s ButtonSet) Punches() ButtonSet { return s & ButtonSet(LP|MP|HP) }
func (s ButtonSet) Kicks() ButtonSet   { return s & ButtonSet(LK|MK|HK) }

var buttonNames = []struct {
	b    Button
	name string
}{
	{LP, "LP"}, {MP, "MP"}, {HP, "HP"}, {LK, "LK"}, {MK, "MK"}, {HK, "HK"},
}

// ParseButton returns the button for a name such as "MP".
func ParseButton(name string) (Button, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, bn := range buttonNames {
		if bn.name == name {
			return bn.b, true
		}
	}
	return 0, false
}

func (b Button) String() string {
	for _, bn := range buttonNames {
		if bn.b == b {
			return bn.name
		}
	}
	return "?"
}

func (s ButtonSet) String() string {
	if s == 0 {
		return "-"
	}
	var parts []string
	for _, bn := range buttonNames {
		if s.Has(bn.b) {
			parts = append(parts, bn.name)
		}
	}
	return strings.Join(parts, "+")
}
