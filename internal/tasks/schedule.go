package tasks

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions (minute through day of week).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// runAtLayouts are the accepted one-shot time renderings. The bare layout
// has no zone and is interpreted in the scheduler's location.
var runAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NextRun computes a task's next fire time strictly after now. ok is false
// when the task will never fire again, which for a one-shot means its run
// time has passed.
func NextRun(task *Task, now time.Time, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.Local
	}
	switch task.Type {
	case TypeOneOff:
		at, err := ParseRunAt(task.Schedule.RunAt, loc)
		if err != nil {
			return time.Time{}, false, err
		}
		if !at.After(now) {
			return time.Time{}, false, nil
		}
		return at, true, nil

	case TypeRecurring:
		expr := task.Schedule.CronExpression()
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse cron %q: %w", expr, err)
		}
		return sched.Next(now.In(loc)), true, nil

	default:
		return time.Time{}, false, fmt.Errorf("unknown task type %q", task.Type)
	}
}

// ParseRunAt parses a one-shot run time. Zoned timestamps keep their zone;
// bare timestamps take loc.
func ParseRunAt(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range runAtLayouts[1:] {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized run_at %q", value)
}
