package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ledger/internal/ledger"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
	}{
		{"defaults", url.Values{}, 2024, 6},
		{"explicit", url.Values{"year": {"2023"}, "month": {"2"}}, 2023, 2},
		{"invalid values are ignored", url.Values{"year": {"abc"}, "month": {"xyz"}}, 2024, 6},
		{"month out of range", url.Values{"month": {"13"}}, 2024, 6},
		{"month zero", url.Values{"month": {"0"}}, 2024, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMonthParams(tt.query, now)
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("ParseMonthParams() = %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}

	if end := (MonthParams{Year: 2024, Month: 2}).End(); !end.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End() = %v", end)
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantJSON bool
		want     ledger.Candidate
		wantErr  bool
	}{
		{
			name: "form",
			body: "name=Salary&amount=50000&type=income&category=salary&date=2024-01-05",
			want: ledger.Candidate{Name: "Salary", Amount: "50000", Type: "income", Category: "salary", Date: "2024-01-05"},
		},
		{
			name:     "json with numeric amount",
			body:     `{"name":"Rent","amount":12000.50,"type":"expense","category":"bills"}`,
			wantJSON: true,
			want:     ledger.Candidate{Name: "Rent", Amount: "12000.50", Type: "expense", Category: "bills"},
		},
		{
			name:     "json with string amount",
			body:     `{"name":"Lunch","amount":"250","type":"expense"}`,
			wantJSON: true,
			want:     ledger.Candidate{Name: "Lunch", Amount: "250", Type: "expense"},
		},
		{
			name: "control characters stripped",
			body: "name=%20Tea%00%20&amount=10",
			want: ledger.Candidate{Name: "Tea", Amount: "10"},
		},
		{
			name: "empty body",
			body: "",
			want: ledger.Candidate{},
		},
		{
			name:    "malformed json",
			body:    `{"name":`,
			wantErr: true,
		},
		{
			name:    "json array",
			body:    `[1,2]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			p := NewRequestBodyParser(httptest.NewRecorder(), req)
			err := p.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Candidate(); got != tt.want {
				t.Errorf("Candidate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParserRejectsOversizedBody(t *testing.T) {
	body := "name=" + strings.Repeat("a", maxBodyBytes) + "&amount=5"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)

	err := p.Parse()
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Parse() error = %v, want ErrBodyTooLarge", err)
	}
	if parseStatus(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("parseStatus = %d, want 413", parseStatus(err))
	}
	if p.Get("amount") != "" {
		t.Errorf("truncated body should yield no fields")
	}
}

func TestParseLimit(t *testing.T) {
	if got := parseLimit(url.Values{"limit": {"5"}}, 10); got != 5 {
		t.Errorf("parseLimit = %d, want 5", got)
	}
	for _, bad := range []string{"", "0", "-3", "x"} {
		if got := parseLimit(url.Values{"limit": {bad}}, 10); got != 10 {
			t.Errorf("parseLimit(%q) = %d, want default", bad, got)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
