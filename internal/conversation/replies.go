package conversation

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/atma-clinic-ai/internal/billing"
	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
)

// Patient-facing texts. Kept together so wording changes stay in one place.
const (
	replyApology            = "Desculpe, tive um problema para processar sua mensagem. Pode tentar novamente em instantes?"
	replyReminderConfirmed  = "Obrigado por confirmar! Sua consulta está garantida."
	replyNPSThanks          = "Muito obrigado pelo seu feedback!"
	replyNPSInvalid         = "Não entendi sua resposta. Por favor, responda apenas com um número de 0 a 10."
	replyOnboardingComplete = "Obrigado! Suas informações foram salvas com sucesso. Se precisar de mais alguma coisa, é só chamar!"
	replyAskNameAgain       = "Desculpe, não consegui entender. Pode me informar seu nome completo?"
	replyHandoff            = "Não tenho certeza de como responder a isso. Deseja que eu encaminhe sua mensagem para um de nossos atendentes?"
	replyFAQMissing         = "Ainda não tenho essa informação cadastrada. Deseja que eu encaminhe sua pergunta para um de nossos atendentes?"
	replyBalanceNeedsName   = "Para verificar informações financeiras, primeiro preciso que você se identifique. Por favor, me informe seu nome completo."
	replyDocumentNeedsName  = "Para solicitar documentos, primeiro preciso que você se identifique. Por favor, me informe seu nome completo."
	replySlotTaken          = "Que pena, esse horário acabou de ser ocupado. Pode me dizer outra preferência de dia ou período?"
)

func preferenceQuestion(firstName string) string {
	if firstName == "" {
		return "Claro! Você tem preferência de dia da semana ou período (manhã, tarde ou noite) para a consulta?"
	}
	return fmt.Sprintf("Claro, %s! Você tem preferência de dia da semana ou período (manhã, tarde ou noite) para a consulta?", firstName)
}

func slotOffer(firstName string, slots []time.Time) string {
	var b strings.Builder
	if firstName != "" {
		fmt.Fprintf(&b, "%s, encontrei ", firstName)
	} else {
		b.WriteString("Encontrei ")
	}
	b.WriteString("estes horários disponíveis:\n")
	for i, s := range FormatSlots(slots) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("Qual deles você prefere?")
	return b.String()
}

func noSlots() string {
	return "Peço desculpa, mas não encontrei horários disponíveis com essa preferência nos próximos dias. Gostaria de tentar outro dia ou período?"
}

func bookingConfirmed(firstName string, start time.Time) string {
	return fmt.Sprintf("Perfeito, %s! Seu agendamento para %s está confirmado. Até lá!", firstName, capitalize(FormatSlot(start)))
}

func bookingNeedsName(start time.Time) string {
	return fmt.Sprintf("Agendamento confirmado para %s! Para finalizar, qual é o seu nome completo?", FormatSlot(start))
}

func onboardingDetailsQuestion(firstName string) string {
	return fmt.Sprintf("Obrigado, %s! Para completar seu cadastro, pode me informar seu CPF e sua data de nascimento (dd/mm/aaaa)?", firstName)
}

func greeting(firstName, accountName string) string {
	who := "tudo bem?"
	if firstName != "" {
		who = firstName + "!"
	}
	return fmt.Sprintf("Olá, %s Sou a assistente virtual do(a) %s. Como posso te ajudar hoje?", who, accountName)
}

func documentRegistered(firstName string, kind clinic.RequestKind) string {
	return fmt.Sprintf("Sua solicitação de %s foi registrada, %s! Nossa equipe vai preparar e te avisar assim que estiver pronta.", strings.ToLower(kind.Label()), firstName)
}

func balanceSummary(firstName string, bal *billing.Balance) string {
	if bal == nil || len(bal.Pending) == 0 {
		return fmt.Sprintf("Olá, %s! Você não possui pendências financeiras no momento.", firstName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s! Encontrei %d pendência(s) em aberto, no total de %s:\n", firstName, len(bal.Pending), billing.FormatBRL(bal.TotalCents))
	for _, tx := range bal.Pending {
		fmt.Fprintf(&b, "- %s: %s\n", tx.CompetenceDate.Format("02/01/2006"), billing.FormatBRL(tx.AmountCents))
	}
	b.WriteString("Se precisar dos dados para pagamento, é só pedir!")
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
