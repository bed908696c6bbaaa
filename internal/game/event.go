package game

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// EventKind classifies a resolved event.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventHit
	EventBlock
	EventParry
	EventMutualHit
	EventThrow
	EventThrowTech
	EventProjectileClash
	EventComboEnd
	EventKO
	EventRoundStart
	EventRoundEnd
	EventMatchEnd
)

// EventVersion for backwards compatibility of the JSONL log
const EventVersion uint8 = 1

var eventKindNames = [...]string{
	EventUnknown:         "unknown",
	EventHit:             "hit",
	EventBlock:           "block",
	EventParry:           "parry",
	EventMutualHit:       "mutual_hit",
	EventThrow:           "throw",
	EventThrowTech:       "throw_tech",
	EventProjectileClash: "projectile_clash",
	EventComboEnd:        "combo_end",
	EventKO:              "ko",
	EventRoundStart:      "round_start",
	EventRoundEnd:        "round_end",
	EventMatchEnd:        "match_end",
}

// String returns human-readable event kind
func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventKindNames {
		if name == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return errors.Errorf("unknown event kind %q", text)
}

// ResolvedEvent is one outcome of a tick, reported to the host.
type ResolvedEvent struct {
	Kind       EventKind `json:"kind"`
	Frame      uint64    `json:"frame"`
	Attacker   int       `json:"attacker"`
	Defender   int       `json:"defender"`
	Move       string    `json:"move,omitempty"`
	Guard      string    `json:"guard,omitempty"`
	Damage     int       `json:"damage"`
	Counter    bool      `json:"counter,omitempty"`
	Chip       bool      `json:"chip,omitempty"`
	Projectile bool      `json:"projectile,omitempty"`
	ComboHits  int       `json:"comboHits,omitempty"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`

	// Round events
	Round  int    `json:"round,omitempty"`
	Winner int    `json:"winner"` // -1 when there is none
	Reason string `json:"reason,omitempty"`
}

// Entry is one line of the event log.
type Entry struct {
	Version   uint8         `json:"version"`
	Sequence  uint64        `json:"sequence"`
	Timestamp int64         `json:"timestamp"` // Unix nano
	Event     ResolvedEvent `json:"event"`
}

// NewEntry wraps an event with the current timestamp
func NewEntry(ev ResolvedEvent) Entry {
	return Entry{
		Version:   EventVersion,
		Timestamp: time.Now().UnixNano(),
		Event:     ev,
	}
}

// EncodeEntry marshals an entry to JSON bytes
func EncodeEntry(e Entry) []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}
