package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Timestamp is a UTC time stored as unix milliseconds in an INTEGER column.
// It implements sql.Scanner and driver.Valuer.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to the stored precision.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Millisecond)}
}

// Scan implements the sql.Scanner interface.
func (t *Timestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
	case int64:
		if v == 0 {
			t.Time = time.Time{}
			return nil
		}
		t.Time = time.UnixMilli(v).UTC()
	case time.Time:
		t.Time = v.UTC()
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return int64(0), nil
	}
	return t.UnixMilli(), nil
}
