package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

// FormatSlot renders a slot in the professional's zone as "segunda-feira, 12/01 às 09:00".
func FormatSlot(t time.Time) string {
	return fmt.Sprintf("%s, %02d/%02d às %02d:%02d", weekdayNames[t.Weekday()], t.Day(), int(t.Month()), t.Hour(), t.Minute())
}

// FormatSlots renders each offered slot.
func FormatSlots(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = FormatSlot(s)
	}
	return out
}

// MatchSlot picks the offered slot a reply refers to. It accepts the option
// number, the full formatted slot, or a time such as "10h" that identifies
// exactly one offer (narrowed by weekday or day of month when several share
// the time). It reports false when nothing or more than one offer matches.
func MatchSlot(reply string, offers []time.Time) (time.Time, bool) {
	text := normalize(reply)
	if text == "" || len(offers) == 0 {
		return time.Time{}, false
	}

	words := strings.TrimSpace(nonWord.ReplaceAllString(text, " "))
	if m := bareNumber.FindStringSubmatch(words); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(offers) {
			return offers[n-1], true
		}
	}

	for _, o := range offers {
		if strings.Contains(text, normalize(FormatSlot(o))) {
			return o, true
		}
	}

	hour, minute, ok := firstTimeToken(text)
	if !ok {
		if m := bareNumber.FindStringSubmatch(words); m != nil {
			hour, _ = strconv.Atoi(m[1])
			ok = hour <= 23
		}
	}
	if !ok {
		return time.Time{}, false
	}
	var candidates []time.Time
	for _, o := range offers {
		if o.Hour() == hour && o.Minute() == minute {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) > 1 {
		candidates = narrowByDay(text, candidates)
	}
	if len(candidates) != 1 {
		return time.Time{}, false
	}
	return candidates[0], true
}

func narrowByDay(text string, candidates []time.Time) []time.Time {
	var out []time.Time
	for _, c := range candidates {
		weekday := normalize(strings.TrimSuffix(weekdayNames[c.Weekday()], "-feira"))
		dayMonth := fmt.Sprintf("%02d/%02d", c.Day(), int(c.Month()))
		dayOnly := regexp.MustCompile(fmt.Sprintf(`\bdia %d\b`, c.Day()))
		if strings.Contains(text, weekday) || strings.Contains(text, dayMonth) || dayOnly.MatchString(text) {
			out = append(out, c)
		}
	}
	return out
}
