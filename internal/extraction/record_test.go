package extraction

import (
	"encoding/json"
	"testing"
)

func TestRequiredFieldsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"array keeps order", `["seller_name","buyer_name"]`, []string{"seller_name", "buyer_name"}},
		{"object keys sorted", `{"purchase_price":true,"buyer_name":{}}`, []string{"buyer_name", "purchase_price"}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			if err := json.Unmarshal([]byte(`{"documentId":"d1","requiredFields":`+tt.json+`}`), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(rec.RequiredFields) != len(tt.want) {
				t.Fatalf("got %v want %v", rec.RequiredFields, tt.want)
			}
			for i := range tt.want {
				if rec.RequiredFields[i] != tt.want[i] {
					t.Fatalf("got %v want %v", rec.RequiredFields, tt.want)
				}
			}
		})
	}
}

func TestRequiredFieldsRejectsScalar(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"requiredFields":"buyer_name"}`), &rec); err == nil {
		t.Fatal("expected error for scalar requiredFields")
	}
}

func TestMatchCallExactOnly(t *testing.T) {
	records := []Record{
		{DocumentID: "old", CallID: "room-1-previous"},
		{DocumentID: "current", CallID: "room-1"},
	}
	rec, ok := MatchCall(records, "room-1")
	if !ok || rec.DocumentID != "current" {
		t.Fatalf("expected exact match, got %+v ok=%v", rec, ok)
	}
	if _, ok := MatchCall(records, "room"); ok {
		t.Fatal("prefix must not match")
	}
	if _, ok := MatchCall(records, ""); ok {
		t.Fatal("empty call id must not match")
	}
}

func TestNilRecordFields(t *testing.T) {
	var rec *Record
	if rec.Fields() != nil {
		t.Fatal("expected nil fields for nil record")
	}
}
