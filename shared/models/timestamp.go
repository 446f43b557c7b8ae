package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the yyyy-MM-dd HH:mm:ss format shared with the other
// services.
const DateTimeLayout = "2006-01-02 15:04:05"

var acceptedLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
}

// LocalDateTime is a wall-clock timestamp without zone, kept in UTC.
type LocalDateTime struct {
	time.Time
}

func NewLocalDateTime(t time.Time) LocalDateTime {
	return LocalDateTime{Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

func ParseLocalDateTime(value string) (LocalDateTime, error) {
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return NewLocalDateTime(t), nil
		}
	}
	return LocalDateTime{}, fmt.Errorf("invalid date %q, expected %s", value, "yyyy-MM-dd HH:mm:ss")
}

func (d LocalDateTime) String() string {
	return d.Format(DateTimeLayout)
}

func (d LocalDateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *LocalDateTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*d = LocalDateTime{}
		return nil
	}
	parsed, err := ParseLocalDateTime(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d LocalDateTime) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner.
func (d *LocalDateTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewLocalDateTime(v)
		return nil
	case nil:
		*d = LocalDateTime{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into LocalDateTime", src)
}
