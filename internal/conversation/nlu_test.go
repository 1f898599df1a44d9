package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
)

type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return LLMResponse{}, errors.New("no scripted reply")
	}
	text := s.replies[0]
	s.replies = s.replies[1:]
	return LLMResponse{Text: text}, nil
}

type nluObservation struct {
	operation, status string
}

type recordingObserver struct {
	seen []nluObservation
}

func (r *recordingObserver) ObserveNLU(operation, status string, _ float64) {
	r.seen = append(r.seen, nluObservation{operation, status})
}

func TestLLMNLU_Classify(t *testing.T) {
	faq := []FAQHint{{Key: "detalhes_pagamento"}}
	tests := []struct {
		name    string
		reply   string
		want    Intent
		invalid bool
	}{
		{name: "builtin", reply: `{"intent":"AGENDAR"}`, want: IntentSchedule},
		{name: "lowercase builtin", reply: `{"intent":"saudacao"}`, want: IntentGreeting},
		{name: "fenced", reply: "```json\n{\"intent\":\"ESCOLHEU_HORARIO\"}\n```", want: IntentChoseSlot},
		{name: "faq key", reply: `{"intent":"detalhes_pagamento"}`, want: Intent("detalhes_pagamento")},
		{name: "unknown label", reply: `{"intent":"PEDIR_PIZZA"}`, want: IntentUnknown},
		{name: "prose", reply: `Claro! A intenção é AGENDAR.`, want: IntentUnknown, invalid: true},
		{name: "extra field", reply: `{"intent":"AGENDAR","confidence":0.9}`, want: IntentUnknown, invalid: true},
		{name: "missing intent", reply: `{}`, want: IntentUnknown, invalid: true},
		{name: "trailing data", reply: `{"intent":"AGENDAR"} {"intent":"SAUDACAO"}`, want: IntentUnknown, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{replies: []string{tt.reply}}
			nlu := NewLLMNLU(client, nil)

			got, err := nlu.Classify(context.Background(), ClassifyInput{Message: "oi", FAQ: faq})
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidNLUOutput)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			require.Len(t, client.requests, 1)
			assert.True(t, client.requests[0].JSON)
		})
	}
}

func TestLLMNLU_ClassifyTransportError(t *testing.T) {
	obs := &recordingObserver{}
	nlu := NewLLMNLU(&scriptedLLM{err: errors.New("timeout")}, nil, WithNLUObserver(obs))

	_, err := nlu.Classify(context.Background(), ClassifyInput{Message: "oi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidNLUOutput)
	assert.Equal(t, []nluObservation{{"classify", "error"}}, obs.seen)
}

func TestLLMNLU_ExtractPreferences(t *testing.T) {
	client := &scriptedLLM{replies: []string{
		`{"weekday":0,"period":"morning","exact_time":"10:00"}`,
		`{"weekday":null,"period":null,"exact_time":null}`,
		`{"weekday":9}`,
		`{"period":"madrugada"}`,
	}}
	nlu := NewLLMNLU(client, nil, WithNLUModel("gemini-test"))
	ctx := context.Background()

	prefs, err := nlu.ExtractPreferences(ctx, "segunda de manhã às 10h")
	require.NoError(t, err)
	require.NotNil(t, prefs.Weekday)
	assert.Equal(t, 0, *prefs.Weekday)
	assert.Equal(t, scheduling.PeriodMorning, prefs.Period)
	assert.Equal(t, "10:00", prefs.ExactTime)
	assert.Equal(t, "gemini-test", client.requests[0].Model)

	prefs, err = nlu.ExtractPreferences(ctx, "qualquer dia")
	require.NoError(t, err)
	assert.True(t, prefs.IsZero())

	prefs, err = nlu.ExtractPreferences(ctx, "dia nove")
	assert.ErrorIs(t, err, ErrInvalidNLUOutput)
	assert.True(t, prefs.IsZero())

	_, err = nlu.ExtractPreferences(ctx, "de madrugada")
	assert.ErrorIs(t, err, ErrInvalidNLUOutput)
}

func TestLLMNLU_GenerateReply(t *testing.T) {
	client := &scriptedLLM{replies: []string{`{"reply":"  Aceitamos Pix!  "}`, `{"reply":""}`}}
	nlu := NewLLMNLU(client, nil)
	ctx := context.Background()

	reply, err := nlu.GenerateReply(ctx, ReplyRequest{Purpose: "faq", Draft: "Aceitamos Pix."})
	require.NoError(t, err)
	assert.Equal(t, "Aceitamos Pix!", reply)

	_, err = nlu.GenerateReply(ctx, ReplyRequest{Purpose: "faq", Draft: "Aceitamos Pix."})
	assert.ErrorIs(t, err, ErrInvalidNLUOutput)
}

func TestFallbackNLU(t *testing.T) {
	ctx := context.Background()

	down := NewLLMNLU(&scriptedLLM{err: errors.New("503")}, nil)
	f := NewFallbackNLU(down, NewRuleNLU(), nil)
	got, err := f.Classify(ctx, ClassifyInput{Message: "quero marcar uma consulta"})
	require.NoError(t, err)
	assert.Equal(t, IntentSchedule, got)

	garbled := NewLLMNLU(&scriptedLLM{replies: []string{"not json"}}, nil)
	f = NewFallbackNLU(garbled, NewRuleNLU(), nil)
	got, err = f.Classify(ctx, ClassifyInput{Message: "quero marcar uma consulta"})
	assert.ErrorIs(t, err, ErrInvalidNLUOutput)
	assert.Equal(t, IntentUnknown, got)
}

func TestBreakerLLMClient_OpensAfterFailures(t *testing.T) {
	inner := &scriptedLLM{err: errors.New("boom")}
	client := NewBreakerLLMClient("test", inner, 2, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Complete(ctx, LLMRequest{})
		require.Error(t, err)
	}
	_, err := client.Complete(ctx, LLMRequest{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.requests, 2)
}

func TestFallbackLLMClient_ClearsModelForSecondary(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("throttled")}
	secondary := &scriptedLLM{replies: []string{`{"intent":"AGENDAR"}`}}
	client := NewFallbackLLMClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "primary-model"})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"AGENDAR"}`, resp.Text)
	require.Len(t, secondary.requests, 1)
	assert.Empty(t, secondary.requests[0].Model)
}

func TestRuleNLU_Classify(t *testing.T) {
	faq := []FAQHint{{Key: "detalhes_pagamento"}, {Key: "localizacao_contato"}}
	tests := []struct {
		msg  string
		step Step
		want Intent
	}{
		{msg: "Oi", want: IntentGreeting},
		{msg: "Boa tarde!", want: IntentGreeting},
		{msg: "Quero marcar uma consulta", want: IntentSchedule},
		{msg: "Tem horário na quinta à tarde?", want: IntentScheduleWithPreference},
		{msg: "terça", step: StepAwaitingPreference, want: IntentScheduleWithPreference},
		{msg: "tanto faz", step: StepAwaitingPreference, want: IntentScheduleWithPreference},
		{msg: "2", step: StepAwaitingSlotChoice, want: IntentChoseSlot},
		{msg: "pode ser às 10:30", step: StepAwaitingSlotChoice, want: IntentChoseSlot},
		{msg: "tenho algum débito?", want: IntentCheckBalance},
		{msg: "preciso da receita", want: IntentRequestPrescription},
		{msg: "Vocês parcelam no cartão?", want: Intent("detalhes_pagamento")},
		{msg: "onde fica a clínica?", want: Intent("localizacao_contato")},
		{msg: "asdkjh", want: IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, err := NewRuleNLU().Classify(context.Background(), ClassifyInput{Message: tt.msg, Step: tt.step, FAQ: faq})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleNLU_ExtractPreferences(t *testing.T) {
	prefs, err := NewRuleNLU().ExtractPreferences(context.Background(), "Boa tarde! Quarta de manhã, umas 9h")
	require.NoError(t, err)
	require.NotNil(t, prefs.Weekday)
	assert.Equal(t, 2, *prefs.Weekday)
	assert.Equal(t, scheduling.PeriodMorning, prefs.Period)
	assert.Equal(t, "09:00", prefs.ExactTime)
}
