package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BlockType classifies a facility calendar reservation.
type BlockType string

const (
	BlockMaintenance   BlockType = "maintenance"
	BlockBlackout      BlockType = "blackout"
	BlockOperatorLeave BlockType = "operator-leave"
)

// ErrUnknownBlockType is returned by ParseBlockType.
var ErrUnknownBlockType = errors.New("unknown block type")

// ParseBlockType accepts the full names as well as the short codes m, b and l.
func ParseBlockType(s string) (BlockType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maintenance", "m":
		return BlockMaintenance, nil
	case "blackout", "b":
		return BlockBlackout, nil
	case "operator-leave", "operator_leave", "leave", "l":
		return BlockOperatorLeave, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownBlockType, s)
	}
}

// Label is the human name used as a default title.
func (t BlockType) Label() string {
	switch t {
	case BlockMaintenance:
		return "Maintenance"
	case BlockBlackout:
		return "Blackout"
	case BlockOperatorLeave:
		return "Operator leave"
	default:
		return string(t)
	}
}

// FacilityBlock is a non-test reservation that excludes scheduling. Blocks are append-only.
type FacilityBlock struct {
	Code      string    `json:"code"`
	Type      BlockType `json:"type"`
	Title     string    `json:"title"`
	Start     time.Time `json:"-"`
	End       time.Time `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Range returns the block's inclusive date range.
func (b *FacilityBlock) Range() DateRange {
	s, e := Day(b.Start), Day(b.End)
	return DateRange{Start: &s, End: &e}
}

// Days returns the inclusive length of the block.
func (b *FacilityBlock) Days() int {
	return DaysBetween(b.Start, b.End)
}

// MarshalJSON renders start and end as YYYY-MM-DD.
func (b FacilityBlock) MarshalJSON() ([]byte, error) {
	type alias FacilityBlock
	return json.Marshal(struct {
		alias
		Start string `json:"start"`
		End   string `json:"end"`
	}{
		alias: alias(b),
		Start: b.Start.Format(DateLayout),
		End:   b.End.Format(DateLayout),
	})
}
