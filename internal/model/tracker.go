package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxTitleLength is enforced by input surfaces, not by the core.
const MaxTitleLength = 38

var (
	ErrInvalidType  = errors.New("model: invalid tracker type")
	ErrInvalidColor = errors.New("model: invalid color")
)

type TrackerType string

const (
	TrackerTypeHabit     TrackerType = "habit"
	TrackerTypeIrregular TrackerType = "irregular"
)

func (t TrackerType) IsValid() bool {
	switch t {
	case TrackerTypeHabit, TrackerTypeIrregular:
		return true
	default:
		return false
	}
}

// HasSchedule reports whether the type carries a user-chosen schedule.
func (t TrackerType) HasSchedule() bool {
	return t != TrackerTypeIrregular
}

// Color holds normalized RGBA channels in [0, 1].
type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
	Alpha float64 `json:"alpha"`
}

var Black = Color{Alpha: 1}

func (c Color) Validate() error {
	for _, v := range []float64{c.Red, c.Green, c.Blue, c.Alpha} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: channel %v out of range", ErrInvalidColor, v)
		}
	}
	return nil
}

// Hex renders the color as #rrggbb, ignoring alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.Red), channel(c.Green), channel(c.Blue))
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// ParseHexColor accepts #rrggbb or #rrggbbaa.
func ParseHexColor(raw string) (Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(s) != 6 && len(s) != 8 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}
	return Color{
		Red:   float64(v>>24&0xff) / 255,
		Green: float64(v>>16&0xff) / 255,
		Blue:  float64(v>>8&0xff) / 255,
		Alpha: float64(v&0xff) / 255,
	}, nil
}

type Tracker struct {
	ID         string      `json:"id"`
	CategoryID string      `json:"category_id"`
	Title      string      `json:"title"`
	Color      Color       `json:"color"`
	Emoji      string      `json:"emoji"`
	Schedule   Schedule    `json:"schedule"`
	Type       TrackerType `json:"type"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Validate checks structural fields only; title length and content are left
// to the input boundary.
func (t Tracker) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: tracker id is required")
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	for _, d := range t.Schedule {
		if !d.IsValid() {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, int(d))
		}
	}
	return t.Color.Validate()
}

// Normalized returns a copy with a canonical schedule. Irregular events are
// stored with the full week.
func (t Tracker) Normalized() Tracker {
	if t.Type == "" {
		t.Type = TrackerTypeHabit
	}
	if t.Type == TrackerTypeIrregular {
		t.Schedule = EveryDay()
	} else {
		t.Schedule = NewSchedule(t.Schedule...)
	}
	return t
}

type Category struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a category together with the trackers shown under it.
type Group struct {
	CategoryID string    `json:"category_id"`
	Title      string    `json:"title"`
	Trackers   []Tracker `json:"trackers"`
}

// Record marks a tracker completed on a day.
type Record struct {
	TrackerID string    `json:"tracker_id"`
	Day       Day       `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}
