package archive

import "time"

// TurnRecord is one inbound message and the assistant's handling of it.
type TurnRecord struct {
	Version    string    `json:"version"`
	TurnID     string    `json:"turn_id"`
	AccountID  string    `json:"account_id"`
	PatientID  string    `json:"patient_id,omitempty"`
	PhoneHash  string    `json:"phone_hash"`
	Inbound    string    `json:"inbound"`
	Reply      string    `json:"reply,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	StepBefore string    `json:"step_before,omitempty"`
	StepAfter  string    `json:"step_after,omitempty"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

// ManifestEntry is one JSONL line in the daily manifest file.
type ManifestEntry struct {
	TurnID     string `json:"turn_id"`
	AccountID  string `json:"account_id"`
	S3Key      string `json:"s3_key"`
	Status     string `json:"status"`
	Intent     string `json:"intent,omitempty"`
	ArchivedAt string `json:"archived_at"`
}
