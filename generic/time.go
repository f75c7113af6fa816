package generic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE - Calendar day without time of day
// =============================================================================

// Date is a calendar day in UTC. Invoices, journal entries, attendance rows
// and leave requests are all dated at day granularity.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, NewValidation("date", fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool { return !d.Before(other) }
func (d Date) Compare(other Date) int { return d.Time.Compare(other.Time) }

// Arithmetic and properties
func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) Year() int { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool { return d.Time.IsZero() }
func (d Date) String() string { return d.Time.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Collaborators sometimes persist full timestamps.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE RANGE - Inclusive span of days
// =============================================================================

// DateRange is inclusive on both ends.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return NewValidation("end_date", fmt.Sprintf("end %s is before start %s", r.End, r.Start))
	}
	return nil
}

// Contains checks if the date falls within the range.
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Days returns every day in the range, in order.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// =============================================================================
// WORK CALENDAR - Weekend days plus holidays
// =============================================================================

// Holiday is a non-working day published by HR.
type Holiday struct {
	ID        string `json:"id"`
	Date      Date   `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring,omitempty"` // same month/day every year
}

// Calendar decides which days count as working days.
type Calendar struct {
	weekend  map[time.Weekday]bool
	holidays []Holiday
}

// NewCalendar builds a calendar. A nil weekend slice means Saturday and Sunday.
func NewCalendar(weekend []time.Weekday, holidays []Holiday) *Calendar {
	if weekend == nil {
		weekend = []time.Weekday{time.Saturday, time.Sunday}
	}
	c := &Calendar{weekend: make(map[time.Weekday]bool, len(weekend)), holidays: holidays}
	for _, wd := range weekend {
		c.weekend[wd] = true
	}
	return c
}

func (c *Calendar) IsWeekend(d Date) bool {
	return c.weekend[d.Weekday()]
}

func (c *Calendar) IsHoliday(d Date) bool {
	for _, h := range c.holidays {
		if h.Recurring {
			if h.Date.Month() == d.Month() && h.Date.Day() == d.Day() {
				return true
			}
			continue
		}
		if h.Date.Equal(d) {
			return true
		}
	}
	return false
}

func (c *Calendar) IsWorkday(d Date) bool {
	return !c.IsWeekend(d) && !c.IsHoliday(d)
}

// Workdays filters the range down to working days.
func (c *Calendar) Workdays(r DateRange) []Date {
	var out []Date
	for _, d := range r.Days() {
		if c.IsWorkday(d) {
			out = append(out, d)
		}
	}
	return out
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := wd.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return wd, nil
		}
	}
	return 0, NewValidation("weekday", fmt.Sprintf("unknown weekday %q", s))
}
