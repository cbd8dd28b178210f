package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Weekdays is the set of weekday indices on which a user is expected to
// attend. Values are 0-based (Sunday=0), but legacy rows imported from
// the old desktop database may carry 1-based values (Sunday=1); the
// membership check accepts both encodings. Persisted as a JSON array in
// a TEXT column.
type Weekdays []int

// Value implements driver.Valuer.
func (w Weekdays) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]int(w))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (w *Weekdays) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = Weekdays{}
		return nil
	case []byte:
		return w.unmarshal(v)
	case string:
		return w.unmarshal([]byte(v))
	default:
		return fmt.Errorf("weekdays: unsupported scan type %T", src)
	}
}

func (w *Weekdays) unmarshal(raw []byte) error {
	if len(raw) == 0 {
		*w = Weekdays{}
		return nil
	}
	var days []int
	if err := json.Unmarshal(raw, &days); err != nil {
		return fmt.Errorf("weekdays: %w", err)
	}
	*w = days
	return nil
}

// ContainsWeekday reports whether the 0-based weekday is scheduled,
// tolerating rows stored with the 1-based encoding.
func (w Weekdays) ContainsWeekday(day int) bool {
	for _, d := range w {
		if d == day || d == day+1 {
			return true
		}
	}
	return false
}

// User is a person enrolled with the organization. ID is the
// sensor-assigned template slot; Matricula is the business key.
type User struct {
	ID         int64    `db:"id" json:"id"`
	Nome       string   `db:"nome" json:"nome"`
	Matricula  string   `db:"matricula" json:"matricula"`
	Turma      string   `db:"turma" json:"turma"`
	Email      string   `db:"email" json:"email"`
	Genero     string   `db:"genero" json:"genero"`
	Cabine     string   `db:"cabine" json:"cabine"`
	Turno      string   `db:"turno" json:"turno"`
	DiasSemana Weekdays `db:"dias_semana" json:"diasSemana"`
}
