// Package archive keeps a PII-scrubbed copy of every conversation turn in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

const recordVersion = "1.0"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives conversation turns to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveTurn scrubs and writes a turn as JSON, then appends it to the day's manifest.
func (s *Store) ArchiveTurn(ctx context.Context, record TurnRecord) error {
	if !s.Enabled() {
		return nil
	}
	if record.TurnID == "" {
		record.TurnID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}
	record.Version = recordVersion
	record.Inbound = ScrubPII(record.Inbound)
	record.Reply = ScrubPII(record.Reply)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	day := record.ReceivedAt.UTC()
	key := fmt.Sprintf("turns/v1/by-date/%d/%02d/%02d/%s/%s.json",
		day.Year(), day.Month(), day.Day(), record.AccountID, record.TurnID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Debug("archived turn", "org_id", record.AccountID, "s3_key", key, "status", record.Status)

	entry := ManifestEntry{
		TurnID:     record.TurnID,
		AccountID:  record.AccountID,
		S3Key:      key,
		Status:     record.Status,
		Intent:     record.Intent,
		ArchivedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, day, entry); err != nil {
		// the turn itself is stored
		s.logger.Warn("failed to append manifest", "error", err, "turn_id", record.TurnID)
	}
	return nil
}

// appendManifest adds a JSONL line to the daily manifest with a read-modify-write.
func (s *Store) appendManifest(ctx context.Context, day time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("turns/v1/manifests/%d-%02d-%02d.jsonl", day.Year(), day.Month(), day.Day())

	var existing []byte
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	case isNotFound(err):
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
