package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("HX-Trigger should be absent without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerLedgerChanged(7).
		TriggerFormReset().
		TriggerSuccessNotification("Added Salary").
		Write(w)

	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &events); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if string(events[EventLedgerChanged]) != `{"version":7}` {
		t.Errorf("ledger:changed = %s", events[EventLedgerChanged])
	}
	if _, ok := events[EventFormReset]; !ok {
		t.Errorf("form:reset missing")
	}
	note := string(events[EventNotification])
	for _, part := range []string{`"type":"success"`, `"message":"Added Salary"`, `"duration":3000`} {
		if !strings.Contains(note, part) {
			t.Errorf("notification missing %s: %s", part, note)
		}
	}
}

func TestHTMXResponseBuilder_NotificationKinds(t *testing.T) {
	tests := []struct {
		name  string
		build func(*HTMXResponseBuilder) *HTMXResponseBuilder
		want  string
	}{
		{"warning", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerWarningNotification("w") }, `"type":"warning"`},
		{"error", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerErrorNotification("e") }, `"type":"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build(NewHTMXResponse()).Write(w)
			if !strings.Contains(w.Header().Get("HX-Trigger"), tt.want) {
				t.Errorf("HX-Trigger = %s, want %s", w.Header().Get("HX-Trigger"), tt.want)
			}
		})
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		b      *HTMXResponseBuilder
		status int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("bad"), http.StatusUnprocessableEntity},
		{"internal", InternalServerError("bad"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.b.Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestErrorResponse_Escapes(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusBadRequest, `<script>alert(1)</script>`).Write(w)
	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
}

func TestHTMXResponseBuilder_NavigationHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	UnprocessableEntityError("bad").Retarget("#form-error").PushURL("/").Write(w)

	want := map[string]string{
		"HX-Retarget": "#form-error",
		"HX-Reswap":   "innerHTML",
		"HX-Push-Url": "/",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}
