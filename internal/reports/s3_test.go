package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

type mockS3 struct {
	objects map[string][]byte
	types   map[string]string
	getErr  error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	m.objects[*in.Key] = body
	m.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestPublisherWritesReportAndManifest(t *testing.T) {
	mock := newMockS3()
	p := NewPublisher(mock, "qa-bucket", "scenario-runs", logging.Discard())
	times := []time.Time{
		time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	p.now = func() time.Time {
		next := times[0]
		times = times[1:]
		return next
	}

	first := scenario.Summarize([]scenario.ScenarioRunResult{{Name: "a", Status: scenario.StatusPassed}}, time.Second)
	second := scenario.Summarize([]scenario.ScenarioRunResult{{Name: "a", Status: scenario.StatusFailed}}, time.Second)
	require.NoError(t, p.Publish(context.Background(), first))
	require.NoError(t, p.Publish(context.Background(), second))

	report, ok := mock.objects["scenario-runs/run-all/2026/03/04/093000.000.json"]
	require.True(t, ok, "report object written: %v", keys(mock.objects))
	var decoded scenario.RunAllResult
	require.NoError(t, json.Unmarshal(report, &decoded))
	assert.Equal(t, 1, decoded.Passed)

	manifest := string(mock.objects["scenario-runs/manifests/2026-03.jsonl"])
	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"failed":1`)
	assert.Equal(t, "application/x-ndjson", mock.types["scenario-runs/manifests/2026-03.jsonl"])
}

func TestPublisherDisabledWithoutBucket(t *testing.T) {
	mock := newMockS3()
	p := NewPublisher(mock, "", "", nil)
	assert.False(t, p.Enabled())
	require.NoError(t, p.Publish(context.Background(), scenario.RunAllResult{}))
	assert.Empty(t, mock.objects)
}

func TestPublisherManifestFailureDoesNotFailPublish(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("access denied")
	p := NewPublisher(mock, "qa-bucket", "", logging.Discard())
	require.NoError(t, p.Publish(context.Background(), scenario.RunAllResult{}))
	assert.Len(t, mock.objects, 1)
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
