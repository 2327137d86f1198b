package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultTime is the reminder time used when nothing else is known
const DefaultTime = "09:00"

// ErrInvalidTime is returned for strings that are not a time of day
var ErrInvalidTime = errors.New("invalid time of day")

// clock is a parsed time of day
type clock struct {
	hour   int
	minute int
}

// parse accepts "H:MM AM", "HH:MM PM", "HH:MM" and "HH:MM:SS"
func parse(s string) (clock, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return clock{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	meridiem := ""
	upper := strings.ToUpper(raw)
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(upper, suffix) {
			meridiem = suffix
			raw = strings.TrimSpace(raw[:len(raw)-len(suffix)])
			break
		}
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 || (meridiem != "" && len(parts) != 2) {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts[1]) != 2 {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	default:
		if hour < 1 || hour > 12 {
			return clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		// 12 AM is midnight, 12 PM is noon
		if hour == 12 {
			hour = 0
		}
		if meridiem == "PM" {
			hour += 12
		}
	}

	return clock{hour: hour, minute: minute}, nil
}

// Normalize converts any accepted time format to storage form "HH:MM"
func Normalize(s string) (string, error) {
	c, err := parse(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute), nil
}

// To24Hour converts any accepted time format to calendar form "HH:MM:SS"
func To24Hour(s string) (string, error) {
	c, err := parse(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:00", c.hour, c.minute), nil
}

// Display renders a time as "H:MM AM/PM". Unparseable input is returned as-is.
func Display(s string) string {
	c, err := parse(s)
	if err != nil {
		return s
	}

	meridiem := "AM"
	if c.hour >= 12 {
		meridiem = "PM"
	}
	hour := c.hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, c.minute, meridiem)
}
