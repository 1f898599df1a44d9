package conversation

import (
	"fmt"
	"strings"
)

func classifyPrompt(in ClassifyInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é a secretária virtual de %s", nonEmpty(in.ProfessionalName, "um(a) profissional de saúde"))
	if in.AccountName != "" {
		fmt.Fprintf(&b, " na clínica %s", in.AccountName)
	}
	b.WriteString(". Classifique a mensagem do paciente recebida via WhatsApp.\n\n")
	b.WriteString("Intenções possíveis:\n")
	b.WriteString("- AGENDAR: quer marcar consulta sem dizer dia ou horário\n")
	b.WriteString("- AGENDAR_COM_PREFERENCIA: quer marcar e informa dia da semana, período ou horário\n")
	b.WriteString("- ESCOLHEU_HORARIO: escolheu um dos horários oferecidos\n")
	b.WriteString("- SAUDACAO: apenas cumprimenta\n")
	b.WriteString("- VERIFICAR_PENDENCIAS: pergunta sobre pagamentos ou débitos em aberto\n")
	b.WriteString("- SOLICITAR_RECEITA, SOLICITAR_ATESTADO, SOLICITAR_RECIBO: pede um documento\n")
	for _, f := range in.FAQ {
		fmt.Fprintf(&b, "- %s: perguntas como %q\n", f.Key, f.ExampleQuestions)
	}
	b.WriteString("- DESCONHECIDO: nenhuma das anteriores\n\n")
	switch in.Step {
	case StepAwaitingPreference:
		b.WriteString("Contexto: perguntamos ao paciente sua preferência de dia ou período.\n")
	case StepAwaitingSlotChoice:
		fmt.Fprintf(&b, "Contexto: oferecemos estes horários: %s.\n", strings.Join(in.OfferedSlots, "; "))
	}
	b.WriteString(`Responda apenas com JSON no formato {"intent": "<INTENCAO>"}.`)
	return b.String()
}

const preferencesPrompt = `Extraia a preferência de agendamento da mensagem do paciente.
Dias da semana: 0=segunda, 1=terça, 2=quarta, 3=quinta, 4=sexta, 5=sábado, 6=domingo.
Períodos: "morning" (manhã), "afternoon" (tarde), "evening" (noite).
Horário exato no formato "HH:MM" (24h).
Responda apenas com JSON no formato {"weekday": <número ou null>, "period": <texto ou null>, "exact_time": <texto ou null>}.`

const replyPrompt = `Você é a assistente virtual de uma clínica e conversa com pacientes pelo WhatsApp.
Recebe um JSON com a pergunta do paciente e um rascunho de resposta.
Reescreva o rascunho de forma cordial e breve, em português do Brasil, sem inventar informações e sem usar placeholders.
Responda apenas com JSON no formato {"reply": "<texto>"}.`

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
