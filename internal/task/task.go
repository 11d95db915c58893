package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is how often a scheduled task recurs.
type Frequency string

const (
	Once   Frequency = "once"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Task is a named, persisted backup configuration. Name is the identity.
type Task struct {
	Schedule    *Schedule `toml:"schedule,omitempty"`
	Name        string    `toml:"name"`
	Source      string    `toml:"source"`
	Destination string    `toml:"destination"`
	Exclude     []string  `toml:"exclude,omitempty"`
	// Mirror removes files from the destination once they disappear from
	// the source. Off by default: deleted files are only reported.
	Mirror bool `toml:"mirror,omitempty"`
	// Verify re-hashes every copied file at the destination.
	Verify bool `toml:"verify,omitempty"`
}

// Schedule is a recurrence rule. Time is local wall-clock "HH:MM"; Day is
// only meaningful for weekly schedules.
type Schedule struct {
	Frequency Frequency `toml:"frequency"`
	Time      string    `toml:"time"`
	Day       string    `toml:"day,omitempty"`
}

// Recurring reports whether the schedule produces runs on its own.
func (s *Schedule) Recurring() bool {
	return s != nil && (s.Frequency == Daily || s.Frequency == Weekly)
}

// Validate checks the schedule fields.
func (s *Schedule) Validate() error {
	if s == nil {
		return nil
	}
	switch s.Frequency {
	case Once, Daily, Weekly:
	default:
		return fmt.Errorf("unknown frequency %q (want once, daily or weekly)", s.Frequency)
	}
	if s.Frequency == Once && s.Time == "" {
		return nil
	}
	if _, _, err := s.clock(); err != nil {
		return err
	}
	if s.Frequency == Weekly {
		if _, err := ParseWeekday(s.Day); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schedule) clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s.Time)
	}
	return t.Hour(), t.Minute(), nil
}

// CronSpec converts a recurring schedule into a standard five-field cron
// expression. Once schedules have no spec.
func (s *Schedule) CronSpec() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if !s.Recurring() {
		return "", errors.New("schedule does not recur")
	}
	hour, minute, err := s.clock()
	if err != nil {
		return "", err
	}
	if s.Frequency == Daily {
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	day, err := ParseWeekday(s.Day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * %d", minute, hour, int(day)), nil
}

func (s *Schedule) String() string {
	if s == nil {
		return "manual"
	}
	switch s.Frequency {
	case Weekly:
		return fmt.Sprintf("weekly at %s on %s", s.Time, s.Day)
	case Daily:
		return "daily at " + s.Time
	default:
		return "once"
	}
}

// ParseWeekday accepts full or three-letter English day names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid day %q", s)
}

// Equivalent reports whether two tasks describe the same backup apart from
// their names.
func Equivalent(a, b Task) bool {
	a.Name, b.Name = "", ""
	return fmt.Sprint(a.Source, a.Destination, a.Exclude, a.Mirror, a.Verify, a.Schedule.String()) ==
		fmt.Sprint(b.Source, b.Destination, b.Exclude, b.Mirror, b.Verify, b.Schedule.String())
}
