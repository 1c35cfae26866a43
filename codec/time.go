package codec

import (
	"encoding/json"
	"strconv"
	"time"
)

// DateLayout is the wire layout of calendar dates.
const DateLayout = "2006-01-02"

// Timestamp is an instant carried on the wire as number-in-string Unix
// seconds. Decoded values are in UTC; sub-second precision is dropped.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Unix returns the timestamp for the given Unix seconds.
func Unix(sec int64) Timestamp {
	return Timestamp{Time: time.Unix(sec, 0).UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return EncodeNumber(t.Time.Unix()), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	sec, err := DecodeNumber[int64](data)
	if err != nil {
		if m, ok := err.(*MalformedValueError); ok {
			m.Expected = "epoch seconds in string"
		}
		return err
	}
	*t = Unix(sec)
	return nil
}

// Date is a calendar day carried on the wire as a plain "YYYY-MM-DD" string.
// The embedded time is midnight UTC of that day.
type Date struct {
	time.Time
}

// NewDate returns the date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &MalformedValueError{Text: strconv.Quote(s), Expected: "date YYYY-MM-DD", Err: err}
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || !isJSONString(data) {
		return &MalformedValueError{Text: string(data), Expected: "date YYYY-MM-DD", Err: err}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
