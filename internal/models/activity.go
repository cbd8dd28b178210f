package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ActivityType tags a clock event as an entry or an exit. The canonical
// labels mirror what the sensor firmware displays.
type ActivityType string

const (
	ActivityEntrada ActivityType = "Entrada"
	ActivitySaida   ActivityType = "SAIDA"
)

// Valid reports whether t is one of the canonical labels.
func (t ActivityType) Valid() bool {
	return t == ActivityEntrada || t == ActivitySaida
}

// NormalizeActivityType maps user-supplied spellings (casing and the
// accented "Saída") onto the canonical labels.
func NormalizeActivityType(raw string) (ActivityType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "í", "i")
	switch s {
	case "entrada":
		return ActivityEntrada, true
	case "saida":
		return ActivitySaida, true
	default:
		return "", false
	}
}

// ISOTime stores instants as RFC 3339 UTC strings in TEXT columns.
type ISOTime struct {
	time.Time
}

// NewISOTime wraps t, normalized to UTC.
func NewISOTime(t time.Time) ISOTime {
	return ISOTime{t.UTC()}
}

// Value implements driver.Valuer.
func (t ISOTime) Value() (driver.Value, error) {
	return t.UTC().Format(time.RFC3339), nil
}

// Scan implements sql.Scanner.
func (t *ISOTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("isotime: unsupported scan type %T", src)
	}
}

func (t *ISOTime) parse(raw string) error {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Older exports carried fractional seconds.
		parsed, err = time.Parse("2006-01-02T15:04:05.999Z07:00", raw)
		if err != nil {
			return fmt.Errorf("isotime: parse %q: %w", raw, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Activity is an append-only clock event carrying a denormalized
// snapshot of the user at event time.
type Activity struct {
	ID         int64        `db:"id" json:"id"`
	UserID     int64        `db:"user_id" json:"userId"`
	UserName   string       `db:"user_name" json:"userName"`
	UserTurma  string       `db:"user_turma" json:"userTurma"`
	UserCabine string       `db:"user_cabine" json:"userCabine"`
	UserTurno  string       `db:"user_turno" json:"userTurno"`
	Type       ActivityType `db:"type" json:"type"`
	Timestamp  ISOTime      `db:"timestamp" json:"timestamp"`
}

// ActivityFilter scopes activity listings.
type ActivityFilter struct {
	UserID *int64
	Turma  string
	Nome   string
	Month  string // "2006-01"
	Type   ActivityType
	Page   int
	PageSize int
}

// Pagination describes list slicing metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DailyCount pairs a calendar date with a count, used by the dashboard.
type DailyCount struct {
	Date  string `db:"date" json:"date"`
	Count int    `db:"count" json:"count"`
}
