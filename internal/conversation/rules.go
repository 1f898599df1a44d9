package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
)

// RuleNLU is a keyword classifier for Portuguese messages. It backs the LLM
// when the provider is unavailable and runs alone in local development.
type RuleNLU struct{}

func NewRuleNLU() *RuleNLU { return &RuleNLU{} }

var (
	timeTokenPattern = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\s*(?::|h)\s*(\d{2})?`)
	bareNumber       = regexp.MustCompile(`^\s*(?:opcao\s*)?(\d{1,2})\s*$`)
	nonWord          = regexp.MustCompile(`[^a-z0-9:]+`)
)

var weekdayWords = []struct {
	word    string
	weekday int
}{
	{"segunda", 0},
	{"terca", 1},
	{"quarta", 2},
	{"quinta", 3},
	{"sexta", 4},
	{"sabado", 5},
	{"domingo", 6},
}

var periodWords = map[string]scheduling.Period{
	"manha": scheduling.PeriodMorning,
	"tarde": scheduling.PeriodAfternoon,
	"noite": scheduling.PeriodEvening,
}

var greetings = map[string]struct{}{
	"oi": {}, "ola": {}, "oie": {}, "bom dia": {}, "boa tarde": {}, "boa noite": {},
	"oi tudo bem": {}, "ola tudo bem": {}, "e ai": {},
}

var faqKeywords = map[string][]string{
	"conhecer_servicos":      {"servico", "especialidade", "tratamento"},
	"conhecer_profissionais": {"profissiona", "medico", "medica", "doutor", "doutora", "especialista"},
	"localizacao_contato":    {"endereco", "onde fica", "localiza", "telefone", "horario de funcionamento"},
	"verificar_convenios":    {"convenio", "plano de saude", "reembolso"},
	"detalhes_pagamento":     {"pix", "cartao", "parcel", "forma de pagamento", "dinheiro"},
	"primeira_consulta":      {"primeira consulta", "novos pacientes", "primeira vez"},
	"preparacao_consulta":    {"levar", "jejum", "preparo", "exames antigos"},
}

func (RuleNLU) Classify(_ context.Context, in ClassifyInput) (Intent, error) {
	text := normalize(in.Message)
	words := strings.TrimSpace(nonWord.ReplaceAllString(text, " "))

	if in.Step == StepAwaitingSlotChoice && (hasTimeToken(text) || bareNumber.MatchString(words)) {
		return IntentChoseSlot, nil
	}
	if _, ok := greetings[words]; ok {
		return IntentGreeting, nil
	}
	switch {
	case containsAny(text, "pendencia", "debito", "devendo", "quanto devo", "em aberto", "boleto"):
		return IntentCheckBalance, nil
	case strings.Contains(text, "receita"):
		return IntentRequestPrescription, nil
	case strings.Contains(text, "atestado"):
		return IntentRequestCertificate, nil
	case strings.Contains(text, "recibo"):
		return IntentRequestReceipt, nil
	}

	hasPreference := !rulePreferences(text).IsZero()
	if containsAny(text, "agendar", "marcar", "consulta", "horario", "agenda", "vaga") || in.Step == StepAwaitingPreference {
		if hasPreference {
			return IntentScheduleWithPreference, nil
		}
		if in.Step != StepAwaitingPreference {
			return IntentSchedule, nil
		}
	}
	if hasPreference && in.Step == StepAwaitingSlotChoice {
		return IntentScheduleWithPreference, nil
	}

	for _, hint := range in.FAQ {
		if containsAny(text, faqKeywords[hint.Key]...) {
			return Intent(hint.Key), nil
		}
	}
	if in.Step == StepAwaitingPreference {
		// "qualquer dia", "tanto faz": search without a filter.
		return IntentScheduleWithPreference, nil
	}
	return IntentUnknown, nil
}

func (RuleNLU) ExtractPreferences(_ context.Context, message string) (*scheduling.Preferences, error) {
	return rulePreferences(normalize(message)), nil
}

func (RuleNLU) GenerateReply(_ context.Context, req ReplyRequest) (string, error) {
	if strings.TrimSpace(req.Draft) == "" {
		return "", errors.New("conversation: no draft to reply with")
	}
	return req.Draft, nil
}

func rulePreferences(text string) *scheduling.Preferences {
	for _, g := range []string{"bom dia", "boa tarde", "boa noite"} {
		text = strings.ReplaceAll(text, g, " ")
	}
	prefs := &scheduling.Preferences{}
	for _, w := range weekdayWords {
		if strings.Contains(text, w.word) {
			wd := w.weekday
			prefs.Weekday = &wd
			break
		}
	}
	for word, period := range periodWords {
		if strings.Contains(text, word) {
			prefs.Period = period
			break
		}
	}
	if hour, minute, ok := firstTimeToken(text); ok {
		prefs.ExactTime = fmt.Sprintf("%02d:%02d", hour, minute)
	}
	return prefs
}

func hasTimeToken(text string) bool {
	_, _, ok := firstTimeToken(text)
	return ok
}

// firstTimeToken finds "10h", "10h30", "10:30" or "às 9 h" style times.
func firstTimeToken(text string) (int, int, bool) {
	m := timeTokenPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
		if minute > 59 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
