// Package reports publishes run-all results to S3.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Publisher.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	Key         string    `json:"key"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Errors      int       `json:"errors"`
	DurationMS  int64     `json:"duration_ms"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher writes each run-all result as a JSON object and appends it to a
// monthly manifest. With no bucket every call is a no-op.
type Publisher struct {
	client S3API
	bucket string
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

func NewPublisher(client S3API, bucket, prefix string, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix, logger: logger, now: time.Now}
}

// Enabled reports whether a bucket and client are configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.bucket != "" && p.client != nil
}

// Publish implements scenario.ReportSink.
func (p *Publisher) Publish(ctx context.Context, result scenario.RunAllResult) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("reports: marshal result: %w", err)
	}

	now := p.now().UTC()
	key := fmt.Sprintf("%srun-all/%d/%02d/%02d/%s.json", p.prefix, now.Year(), now.Month(), now.Day(), now.Format("150405.000"))
	if err := p.put(ctx, key, data, "application/json"); err != nil {
		return err
	}
	p.logger.Info("published run-all report", "s3_key", key, "total", result.Total, "failed", result.Failed, "errors", result.Errors)

	entry := ManifestEntry{
		Key:         key,
		Total:       result.Total,
		Passed:      result.Passed,
		Failed:      result.Failed,
		Errors:      result.Errors,
		DurationMS:  result.DurationMS,
		PublishedAt: now,
	}
	if err := p.appendManifest(ctx, entry); err != nil {
		p.logger.Warn("failed to append report manifest", "error", err, "s3_key", key)
	}
	return nil
}

// appendManifest read-modify-writes the month's JSONL manifest.
func (p *Publisher) appendManifest(ctx context.Context, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("reports: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("%smanifests/%d-%02d.jsonl", p.prefix, entry.PublishedAt.Year(), entry.PublishedAt.Month())

	var buf bytes.Buffer
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		existing, readErr := io.ReadAll(out.Body)
		out.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reports: read manifest: %w", readErr)
		}
		buf.Write(existing)
		if len(existing) > 0 && existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	case isNotFound(err):
		p.logger.Debug("report manifest not found, creating", "key", key)
	default:
		return fmt.Errorf("reports: get manifest: %w", err)
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return p.put(ctx, key, buf.Bytes(), "application/x-ndjson")
}

func (p *Publisher) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("reports: s3 put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
