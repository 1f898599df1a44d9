package conversation

import (
	"errors"
	"regexp"
	"strings"
)

// ErrBlockedInput is returned by LLMNLU when a patient message looks like an
// attempt to steer the model. Callers fall back to the keyword rules.
var ErrBlockedInput = errors.New("conversation: message blocked by input guard")

// guardBlockScore is the score at which a message never reaches the model.
const guardBlockScore = 0.7

type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

// Patients write in Portuguese, but injection payloads are usually copied in English.
var inputGuardPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|rules?|prompts?)`), "injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)(ignore|esque[çc]a|desconsidere)\s+(todas\s+)?(as\s+)?(suas\s+)?(instru[çc][õo]es|regras|ordens)(\s+anteriores)?`), "injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)(disregard|forget)\s+(all\s+)?(previous|prior|your)\s+(instructions?|rules?)`), "injection:forget_instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+|agora\s+voc[êe]\s+[ée]\s+(um|uma|o|a|meu|minha)\s+`), "injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)(new\s+instructions?|system\s*prompt|novas?\s+instru[çc][õo]es|prompt\s+do\s+sistema)\s*:`), "injection:new_instructions", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|modo\s+desenvolvedor`), "injection:jailbreak", 0.9},
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|mostre|revele|repita|imprima)\s+(me\s+)?(your\s+|o\s+seu\s+|seu\s+|suas\s+)?(system\s+prompt|instructions?|prompt|instru[çc][õo]es)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(list|show|give|liste|mostre|passe|me\s+d[êe])\s+(me\s+)?(os\s+)?(dados|telefones?|nomes?|cpfs?|data|names?|phones?)\s+(de\s+|of\s+)?(outros|todos\s+os|other|all)\s+(pacientes|patients)`), "exfiltration:patient_data", 0.8},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|database|db|twilio)\s*(key|token|secret|password|chave|senha)s?\b`), "exfiltration:credentials", 0.8},
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|assistant\|>`), "context:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|assistant|sistema)\s*:`), "context:role_markers", 0.7},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed|svg)\b`), "obfuscation:html", 0.6},
	{regexp.MustCompile(`(?i)base64\s*(encode|decode|:)`), "obfuscation:encoding", 0.5},
}

// GuardResult is the outcome of scanning a patient message.
type GuardResult struct {
	Blocked bool
	Score   float64
	Reasons []string
}

// ScanInbound scores a patient message for prompt-injection signals. The
// score is the strongest signal plus 0.1 for each additional one, capped at 1.
func ScanInbound(message string) GuardResult {
	if strings.TrimSpace(message) == "" {
		return GuardResult{}
	}
	var reasons []string
	maxWeight := 0.0
	for _, p := range inputGuardPatterns {
		if p.re.MatchString(message) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}
	if len(reasons) == 0 {
		return GuardResult{}
	}
	score := maxWeight + float64(len(reasons)-1)*0.1
	if score > 1 {
		score = 1
	}
	return GuardResult{Blocked: score >= guardBlockScore, Score: score, Reasons: reasons}
}

var replyLeakPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)(my|minhas?|meu)\s+(system\s+prompt|instructions?|instru[çc][õo]es|prompt)\s+(is|are|says|s[ãa]o|[ée]|dizem?)`), "leak:instructions", 1},
	{regexp.MustCompile(`(?i)(fui|sou)\s+(programad[oa]|instru[íi]d[oa]|configurad[oa])\s+para|i('m| am)\s+(programmed|instructed)\s+to`), "leak:programming", 1},
	{regexp.MustCompile(`(?i)(powered by|built on|baseado no|rodando no)\s+(Gemini|Bedrock|Claude|GPT|OpenAI|Anthropic)`), "leak:stack", 1},
	{regexp.MustCompile(`(?i)(api[_\s]?key|access[_\s]?token|bearer)\s*[:=]\s*\S+|AKIA[A-Z0-9]{16}`), "leak:credential", 1},
	{regexp.MustCompile(`(?i)(postgres|redis)://\S+`), "leak:database_url", 1},
	{regexp.MustCompile(`(?i)/admin/|/webhooks/`), "leak:internal_path", 1},
}

// ScanReply reports the leak signals found in a generated reply. Any signal
// means the reply must not be sent.
func ScanReply(reply string) []string {
	var reasons []string
	for _, p := range replyLeakPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
		}
	}
	return reasons
}
