package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// ErrInvalidNLUOutput is returned when a provider answers with something that
// does not fit the expected JSON shape.
var ErrInvalidNLUOutput = errors.New("conversation: invalid nlu output")

// FAQHint describes one FAQ key to the classifier.
type FAQHint struct {
	Key              string
	ExampleQuestions string
}

// ClassifyInput is the context handed to the classifier.
type ClassifyInput struct {
	Message          string
	Step             Step
	OfferedSlots     []string
	FAQ              []FAQHint
	AccountName      string
	ProfessionalName string
}

func (in ClassifyInput) faqKeys() []string {
	keys := make([]string, 0, len(in.FAQ))
	for _, f := range in.FAQ {
		keys = append(keys, f.Key)
	}
	return keys
}

// ReplyRequest asks the generator to phrase a drafted answer for the patient.
type ReplyRequest struct {
	Purpose          string
	Question         string
	Draft            string
	PatientFirstName string
	AccountName      string
}

// NLU is the natural-language collaborator. Invalid provider output yields
// ErrInvalidNLUOutput; any other error is a call failure.
type NLU interface {
	Classify(ctx context.Context, in ClassifyInput) (Intent, error)
	ExtractPreferences(ctx context.Context, message string) (*scheduling.Preferences, error)
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

// NLUObserver records NLU call latency.
type NLUObserver interface {
	ObserveNLU(operation, status string, seconds float64)
}

// LLMNLU implements NLU with prompts that demand a strict JSON answer.
type LLMNLU struct {
	client   LLMClient
	model    string
	timeout  time.Duration
	observer NLUObserver
	logger   *logging.Logger
}

// LLMNLUOption configures an LLMNLU.
type LLMNLUOption func(*LLMNLU)

func WithNLUModel(model string) LLMNLUOption {
	return func(n *LLMNLU) { n.model = model }
}

func WithNLUTimeout(d time.Duration) LLMNLUOption {
	return func(n *LLMNLU) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithNLUObserver(o NLUObserver) LLMNLUOption {
	return func(n *LLMNLU) { n.observer = o }
}

func NewLLMNLU(client LLMClient, logger *logging.Logger, opts ...LLMNLUOption) *LLMNLU {
	if client == nil {
		panic("conversation: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	n := &LLMNLU{client: client, timeout: 12 * time.Second, logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type classifyOutput struct {
	Intent *string `json:"intent"`
}

func (n *LLMNLU) Classify(ctx context.Context, in ClassifyInput) (Intent, error) {
	if err := n.screen("classify", in.Message); err != nil {
		return "", err
	}
	var out classifyOutput
	if err := n.complete(ctx, "classify", classifyPrompt(in), in.Message, &out); err != nil {
		if errors.Is(err, ErrInvalidNLUOutput) {
			return IntentUnknown, err
		}
		return "", err
	}
	if out.Intent == nil {
		return IntentUnknown, fmt.Errorf("%w: missing intent", ErrInvalidNLUOutput)
	}
	return ParseIntent(*out.Intent, in.faqKeys()), nil
}

type preferencesOutput struct {
	Weekday   *int    `json:"weekday"`
	Period    *string `json:"period"`
	ExactTime *string `json:"exact_time"`
}

func (n *LLMNLU) ExtractPreferences(ctx context.Context, message string) (*scheduling.Preferences, error) {
	if err := n.screen("extract_preferences", message); err != nil {
		return nil, err
	}
	var out preferencesOutput
	if err := n.complete(ctx, "extract_preferences", preferencesPrompt, message, &out); err != nil {
		if errors.Is(err, ErrInvalidNLUOutput) {
			return &scheduling.Preferences{}, err
		}
		return nil, err
	}
	prefs, err := out.toPreferences()
	if err != nil {
		return &scheduling.Preferences{}, err
	}
	return prefs, nil
}

func (o preferencesOutput) toPreferences() (*scheduling.Preferences, error) {
	prefs := &scheduling.Preferences{}
	if o.Weekday != nil {
		if *o.Weekday < 0 || *o.Weekday > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidNLUOutput, *o.Weekday)
		}
		wd := *o.Weekday
		prefs.Weekday = &wd
	}
	if o.Period != nil && *o.Period != "" {
		p := scheduling.Period(strings.ToLower(*o.Period))
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidNLUOutput, *o.Period)
		}
		prefs.Period = p
	}
	if o.ExactTime != nil {
		// A malformed time is left for the slot finder to ignore.
		prefs.ExactTime = strings.TrimSpace(*o.ExactTime)
	}
	return prefs, nil
}

type replyOutput struct {
	Reply *string `json:"reply"`
}

const maxReplyLength = 1200

func (n *LLMNLU) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if err := n.screen("generate_reply", req.Question); err != nil {
		return "", err
	}
	var out replyOutput
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	if err := n.complete(ctx, "generate_reply", replyPrompt, string(payload), &out); err != nil {
		return "", err
	}
	if out.Reply == nil || strings.TrimSpace(*out.Reply) == "" || len(*out.Reply) > maxReplyLength {
		return "", fmt.Errorf("%w: empty or oversized reply", ErrInvalidNLUOutput)
	}
	if leaks := ScanReply(*out.Reply); len(leaks) > 0 {
		n.logger.Warn("generated reply withheld", "reasons", leaks)
		n.observe("generate_reply", "withheld", 0)
		return "", fmt.Errorf("%w: reply leaks %s", ErrInvalidNLUOutput, strings.Join(leaks, ","))
	}
	return strings.TrimSpace(*out.Reply), nil
}

func (n *LLMNLU) complete(ctx context.Context, operation, system, user string, into any) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	ctx, span := conversationTracer.Start(ctx, "conversation.nlu."+operation)
	defer span.End()

	started := time.Now()
	resp, err := n.client.Complete(ctx, LLMRequest{
		Model:        n.model,
		Instructions: system,
		Input:        user,
		MaxTokens:    400,
		JSON:         true,
	})
	elapsed := time.Since(started).Seconds()
	if err != nil {
		span.RecordError(err)
		n.observe(operation, "error", elapsed)
		return fmt.Errorf("conversation: nlu %s: %w", operation, err)
	}
	if err := decodeStrict(resp.Text, into); err != nil {
		n.observe(operation, "invalid", elapsed)
		n.logger.Warn("nlu returned invalid output", "operation", operation, "error", err)
		return err
	}
	n.logger.Debug("nlu call completed", "operation", operation, "provider", resp.Provider,
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	n.observe(operation, "ok", elapsed)
	return nil
}

// screen keeps suspicious patient text away from the model.
func (n *LLMNLU) screen(operation, message string) error {
	res := ScanInbound(message)
	if !res.Blocked {
		return nil
	}
	n.logger.Warn("patient message blocked by input guard", "operation", operation, "score", res.Score, "reasons", res.Reasons)
	n.observe(operation, "blocked", 0)
	return ErrBlockedInput
}

func (n *LLMNLU) observe(operation, status string, seconds float64) {
	if n.observer != nil {
		n.observer.ObserveNLU(operation, status, seconds)
	}
}

// decodeStrict accepts exactly one JSON object, optionally inside a Markdown
// code fence, with no unknown fields.
func decodeStrict(text string, into any) error {
	body := strings.TrimSpace(text)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}
	if !strings.HasPrefix(body, "{") {
		return fmt.Errorf("%w: not a json object", ErrInvalidNLUOutput)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNLUOutput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidNLUOutput)
	}
	return nil
}

// FallbackNLU answers from secondary when primary fails to respond. Invalid
// output from primary is returned as is.
type FallbackNLU struct {
	primary   NLU
	secondary NLU
	logger    *logging.Logger
}

func NewFallbackNLU(primary, secondary NLU, logger *logging.Logger) *FallbackNLU {
	if primary == nil || secondary == nil {
		panic("conversation: primary and secondary nlu required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackNLU{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackNLU) Classify(ctx context.Context, in ClassifyInput) (Intent, error) {
	intent, err := f.primary.Classify(ctx, in)
	if err == nil || errors.Is(err, ErrInvalidNLUOutput) {
		return intent, err
	}
	f.logger.Warn("nlu classify failed, using fallback", "error", err)
	return f.secondary.Classify(ctx, in)
}

func (f *FallbackNLU) ExtractPreferences(ctx context.Context, message string) (*scheduling.Preferences, error) {
	prefs, err := f.primary.ExtractPreferences(ctx, message)
	if err == nil || errors.Is(err, ErrInvalidNLUOutput) {
		return prefs, err
	}
	f.logger.Warn("nlu preference extraction failed, using fallback", "error", err)
	return f.secondary.ExtractPreferences(ctx, message)
}

func (f *FallbackNLU) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	reply, err := f.primary.GenerateReply(ctx, req)
	if err == nil {
		return reply, nil
	}
	return f.secondary.GenerateReply(ctx, req)
}
