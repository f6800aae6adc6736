package ledger

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantIDs    []int64
		renumbered int
		wantErr    error
	}{
		{name: "empty", data: "", wantIDs: []int64{}},
		{name: "null", data: "null", wantIDs: []int64{}},
		{name: "empty array", data: "[]", wantIDs: []int64{}},
		{
			name:    "distinct ids",
			data:    `[{"id":2,"name":"a","amount":1,"type":"income"},{"id":9,"name":"b","amount":1,"type":"expense"}]`,
			wantIDs: []int64{2, 9},
		},
		{
			name:       "later duplicates renumbered above the maximum",
			data:       `[{"id":4,"name":"a","amount":1,"type":"income"},{"id":4,"name":"b","amount":1,"type":"income"},{"id":9,"name":"c","amount":1,"type":"income"},{"id":4,"name":"d","amount":1,"type":"income"}]`,
			wantIDs:    []int64{4, 10, 9, 11},
			renumbered: 2,
		},
		{name: "not an array", data: `{"id":1}`, wantErr: ErrCorruptState},
		{name: "not json", data: `{{{`, wantErr: ErrCorruptState},
		{name: "oversized amount", data: `[{"id":1,"name":"a","amount":1e9999999,"type":"income"}]`, wantErr: ErrCorruptState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, renumbered, err := Decode([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if renumbered != tt.renumbered {
				t.Errorf("renumbered = %d, want %d", renumbered, tt.renumbered)
			}
			if len(txs) != len(tt.wantIDs) {
				t.Fatalf("got %d transactions, want %d", len(txs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if txs[i].ID != id {
					t.Errorf("txs[%d].ID = %d, want %d", i, txs[i].ID, id)
				}
			}
		})
	}
}

func TestEncodeNil(t *testing.T) {
	b, err := Encode(nil)
	if err != nil || string(b) != "[]" {
		t.Fatalf("Encode(nil) = %s, %v", b, err)
	}
	if _, _, err := Decode(b); err != nil {
		t.Fatalf("Decode(Encode(nil)): %v", err)
	}
}
