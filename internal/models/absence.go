package models

import "time"

// DateLayout is the calendar-date encoding used by absence rows.
const DateLayout = "2006-01-02"

// LocalDate renders t as a calendar date in the host's local timezone.
// Day boundaries across the whole system follow host-local time.
func LocalDate(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Absence marks a scheduled user as not yet seen on a given date. At
// most one row exists per (user, date); recording an Entrada for that
// day removes it.
type Absence struct {
	ID        int64   `db:"id" json:"id"`
	UserID    int64   `db:"user_id" json:"userId"`
	UserName  string  `db:"user_name" json:"userName"`
	UserTurma string  `db:"user_turma" json:"userTurma"`
	UserTurno string  `db:"user_turno" json:"userTurno"`
	Date      string  `db:"date" json:"date"`
	Reason    string  `db:"reason" json:"reason"`
	CreatedAt ISOTime `db:"created_at" json:"createdAt"`
}

// AbsenceFilter scopes absence listings.
type AbsenceFilter struct {
	UserID *int64
	Turma  string
	Date   string // exact date
	Month  string // "2006-01"
}
