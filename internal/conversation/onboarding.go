package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
)

var (
	namePrefix  = regexp.MustCompile(`(?i)^\s*(meu nome (é|e)|me chamo|eu sou|sou (o|a))\s*[:,\-]?\s*`)
	cpfPattern  = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	datePattern = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	digitGroups = regexp.MustCompile(`\d+`)
)

// StripNamePrefix removes "meu nome é" style fillers from a name reply.
func StripNamePrefix(reply string) string {
	name := namePrefix.ReplaceAllString(reply, "")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(name), ".!"))
}

// Details are the onboarding fields found in a reply.
type Details struct {
	CPF       string
	BirthDate *time.Time
}

// Fields names what was found, for the audit trail.
func (d Details) Fields() []string {
	var out []string
	if d.CPF != "" {
		out = append(out, "cpf")
	}
	if d.BirthDate != nil {
		out = append(out, "birth_date")
	}
	return out
}

// ExtractDetails pulls a CPF and a dd/mm/yyyy birth date out of free text.
// An impossible date is ignored.
func ExtractDetails(reply string) Details {
	var d Details
	if m := cpfPattern.FindString(reply); m != "" {
		d.CPF = clinic.Digits(m)
	}
	if m := datePattern.FindString(reply); m != "" {
		if t, err := time.Parse("02/01/2006", m); err == nil {
			d.BirthDate = &t
		}
	}
	return d
}

// ParseNPSScore accepts a reply carrying exactly one number between 0 and 10.
func ParseNPSScore(reply string) (int, bool) {
	groups := digitGroups.FindAllString(reply, -1)
	if len(groups) != 1 || len(groups[0]) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(groups[0])
	if err != nil || n < 0 || n > 10 {
		return 0, false
	}
	return n, true
}

func firstNameOf(fullName string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	return first
}
