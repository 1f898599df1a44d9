package conversation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
)

// Intent is a classified category of patient message.
type Intent string

const (
	IntentSchedule               Intent = "AGENDAR"
	IntentScheduleWithPreference Intent = "AGENDAR_COM_PREFERENCIA"
	IntentChoseSlot              Intent = "ESCOLHEU_HORARIO"
	IntentGreeting               Intent = "SAUDACAO"
	IntentCheckBalance           Intent = "VERIFICAR_PENDENCIAS"
	IntentRequestPrescription    Intent = "SOLICITAR_RECEITA"
	IntentRequestCertificate     Intent = "SOLICITAR_ATESTADO"
	IntentRequestReceipt         Intent = "SOLICITAR_RECIBO"
	IntentUnknown                Intent = "DESCONHECIDO"
)

var builtinIntents = map[Intent]struct{}{
	IntentSchedule:               {},
	IntentScheduleWithPreference: {},
	IntentChoseSlot:              {},
	IntentGreeting:               {},
	IntentCheckBalance:           {},
	IntentRequestPrescription:    {},
	IntentRequestCertificate:     {},
	IntentRequestReceipt:         {},
	IntentUnknown:                {},
}

// DocumentKind maps a document request intent to the stored request kind.
func (i Intent) DocumentKind() (clinic.RequestKind, bool) {
	switch i {
	case IntentRequestPrescription:
		return clinic.RequestPrescription, true
	case IntentRequestCertificate:
		return clinic.RequestCertificate, true
	case IntentRequestReceipt:
		return clinic.RequestReceipt, true
	}
	return "", false
}

// FAQKey returns the FAQ intent key when i is not a built-in intent.
func (i Intent) FAQKey() (string, bool) {
	if _, ok := builtinIntents[i]; ok || i == "" {
		return "", false
	}
	return strings.ToLower(string(i)), true
}

var faqKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// ParseIntent validates a raw label against the built-in intents and the
// account's FAQ keys. Anything else is IntentUnknown.
func ParseIntent(raw string, faqKeys []string) Intent {
	label := strings.TrimSpace(raw)
	upper := Intent(strings.ToUpper(label))
	if _, ok := builtinIntents[upper]; ok {
		return upper
	}
	lower := strings.ToLower(label)
	if !faqKeyPattern.MatchString(lower) {
		return IntentUnknown
	}
	for _, k := range faqKeys {
		if k == lower {
			return Intent(lower)
		}
	}
	return IntentUnknown
}

// ReminderReply is a patient answer to an appointment reminder.
type ReminderReply int

const (
	ReminderReplyNone ReminderReply = iota
	ReminderReplyYes
	ReminderReplyNo
	ReminderReplyReschedule
)

// ParseReminderReply recognises the whole-message answers SIM, NÃO and REAGENDAR.
func ParseReminderReply(msg string) ReminderReply {
	switch strings.ToUpper(fold(strings.Trim(strings.TrimSpace(msg), ".!? "))) {
	case "SIM":
		return ReminderReplyYes
	case "NAO":
		return ReminderReplyNo
	case "REAGENDAR":
		return ReminderReplyReschedule
	}
	return ReminderReplyNone
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases nothing; it strips diacritics so "NÃO" matches "NAO".
func fold(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

// normalize lowercases and folds accents for keyword matching.
func normalize(s string) string {
	return strings.ToLower(fold(strings.TrimSpace(s)))
}
