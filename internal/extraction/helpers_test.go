package extraction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeBackend serves the extraction endpoints from in-memory records and
// counts requests per phase.
type fakeBackend struct {
	mu         sync.Mutex
	records    []Record
	listCalls  int
	getCalls   int
	failStatus int
	server     *httptest.Server
	lastQuery  map[string]string
}

func newFakeBackend(t *testing.T, records ...Record) *fakeBackend {
	t.Helper()
	b := &fakeBackend{records: records}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failStatus != 0 {
		w.WriteHeader(b.failStatus)
		_, _ = w.Write([]byte(`{"detail":"backend unavailable"}`))
		return
	}

	switch {
	case r.URL.Path == "/v1/extractions":
		b.listCalls++
		b.lastQuery = map[string]string{
			"callId": r.URL.Query().Get("callId"),
			"userId": r.URL.Query().Get("userId"),
		}
		var out []Record
		for _, rec := range b.records {
			if strings.HasPrefix(rec.CallID, r.URL.Query().Get("callId")) || rec.ContractInstanceID == "shared" {
				out = append(out, rec)
			}
		}
		if out == nil {
			out = []Record{}
		}
		_ = json.NewEncoder(w).Encode(out)
	case strings.HasPrefix(r.URL.Path, "/v1/extractions/"):
		b.getCalls++
		id := strings.TrimPrefix(r.URL.Path, "/v1/extractions/")
		for _, rec := range b.records {
			if rec.DocumentID == id {
				rec.CallID = ""
				_ = json.NewEncoder(w).Encode(rec)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) add(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
}

func (b *fakeBackend) setField(documentID, key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.records {
		if b.records[i].DocumentID == documentID {
			if b.records[i].FieldsJSON == nil {
				b.records[i].FieldsJSON = map[string]any{}
			}
			b.records[i].FieldsJSON[key] = value
		}
	}
}

func (b *fakeBackend) counts() (list, get int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls, b.getCalls
}

func (b *fakeBackend) setFailure(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStatus = status
}
