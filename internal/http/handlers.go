package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/render"
)

// indexData feeds templates/index.html.
type indexData struct {
	View       render.View
	Categories []render.CategoryOption
	Today      string
	Year       int
	Month      int
	Form       ledger.Candidate
	Error      string
	Warning    string
}

func (s *Server) indexData(snap ledger.Snapshot) indexData {
	now := s.now()
	return indexData{
		View:       s.renderer.BuildView(snap, s.recentLimit),
		Categories: render.CategoryOptions(),
		Today:      now.Format(core.DateLayout),
		Year:       now.Year(),
		Month:      int(now.Month()),
		Form:       ledger.Candidate{Type: string(core.Income)},
	}
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, data indexData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			log.FieldOperation, log.OpRender, log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.store.Refresh(r.Context())
	s.renderIndex(w, r, http.StatusOK, s.indexData(s.store.Snapshot()))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if status := parseStatus(err); status == http.StatusRequestEntityTooLarge {
			ErrorResponse(status, "Request is too large").Write(w)
			return
		}
		BadRequestError("Invalid request body").Write(w)
		return
	}
	cand := p.Candidate()

	tx, err := s.store.Add(ctx, cand)
	if errors.Is(err, core.ErrInvalidInput) {
		data := s.indexData(s.store.Snapshot())
		data.Form = cand
		data.Error = inputMessage(err)
		if isHTMX(r) {
			UnprocessableEntityError(data.Error).Retarget("#form-error").Write(w)
			return
		}
		s.renderIndex(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	warning := persistWarning(err)

	if isHTMX(r) {
		snap := s.store.Snapshot()
		data := s.indexData(snap)
		data.Warning = warning
		var body bytes.Buffer
		if err := s.templates.ExecuteTemplate(&body, "index.html", data); err != nil {
			InternalServerError("Failed to render page").Write(w)
			return
		}
		b := NewHTMXResponse().
			TriggerLedgerChanged(snap.Version).
			TriggerFormReset().
			PushURL("/").
			BodyHTML(body.String())
		if warning != "" {
			b.TriggerWarningNotification(warning)
		} else {
			b.TriggerSuccessNotification(fmt.Sprintf("Added %s", tx.Name))
		}
		b.Write(w)
		return
	}

	if warning != "" {
		data := s.indexData(s.store.Snapshot())
		data.Warning = warning
		s.renderIndex(w, r, http.StatusOK, data)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	removed, err := s.store.Delete(r.Context(), id)
	warning := persistWarning(err)

	if isHTMX(r) {
		snap := s.store.Snapshot()
		data := s.indexData(snap)
		data.Warning = warning
		var body bytes.Buffer
		if err := s.templates.ExecuteTemplate(&body, "index.html", data); err != nil {
			InternalServerError("Failed to render page").Write(w)
			return
		}
		b := NewHTMXResponse().PushURL("/").BodyHTML(body.String())
		if removed {
			b.TriggerLedgerChanged(snap.Version)
		}
		if warning != "" {
			b.TriggerWarningNotification(warning)
		}
		b.Write(w)
		return
	}

	if warning != "" {
		data := s.indexData(s.store.Snapshot())
		data.Warning = warning
		s.renderIndex(w, r, http.StatusOK, data)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := ParseMonthParams(r.URL.Query(), s.now())
	s.store.Refresh(ctx)
	snap := s.store.Snapshot()

	key := fmt.Sprintf("%d:%04d-%02d", snap.Version, params.Year, params.Month)
	etag := strconv.Quote(key)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	svg, ok := s.chartCache.Get(key)
	if !ok {
		var buf bytes.Buffer
		points := core.MonthlySeries(snap.Transactions, params.End())
		if err := s.renderer.TrendChart(&buf, points, render.DefaultChartOptions()); err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Trend chart render failed",
				log.FieldOperation, log.OpRender, log.FieldError, err)
			http.Error(w, "failed to render chart", http.StatusInternalServerError)
			return
		}
		svg = buf.Bytes()
		s.chartCache.Set(key, svg)
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := s.renderer.WriteWorkbook(&buf, s.store.Snapshot()); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Workbook export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
		http.Error(w, "failed to export", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	_, _ = buf.WriteTo(w)
}

type listResponse struct {
	Version      uint64             `json:"version"`
	Count        int                `json:"count"`
	Transactions []core.Transaction `json:"transactions"`
	Totals       core.Totals        `json:"totals"`
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	s.store.Refresh(r.Context())
	snap := s.store.Snapshot()
	txs := snap.Transactions
	if r.URL.Query().Has("limit") {
		txs = snap.Recent(parseLimit(r.URL.Query(), s.recentLimit))
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Version:      snap.Version,
		Count:        len(snap.Transactions),
		Transactions: txs,
		Totals:       snap.Totals,
	})
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeJSONError(w, parseStatus(err), err.Error())
		return
	}

	tx, err := s.store.Add(r.Context(), p.Candidate())
	if errors.Is(err, core.ErrInvalidInput) {
		writeJSONError(w, http.StatusUnprocessableEntity, inputMessage(err))
		return
	}
	if warning := persistWarning(err); warning != "" {
		w.Header().Set("Warning", `199 - "`+warning+`"`)
	}
	w.Header().Set("Location", fmt.Sprintf("/api/transactions/%d", tx.ID))
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	removed, err := s.store.Delete(r.Context(), id)
	if !removed {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("transaction %d not found", id))
		return
	}
	if warning := persistWarning(err); warning != "" {
		w.Header().Set("Warning", `199 - "`+warning+`"`)
	}
	w.WriteHeader(http.StatusNoContent)
}

type summaryResponse struct {
	core.Totals
	Version   uint64            `json:"version"`
	Count     int               `json:"count"`
	Formatted formattedTotals   `json:"formatted"`
	Months    []core.MonthPoint `json:"months"`
}

type formattedTotals struct {
	NetBalance   string `json:"netBalance"`
	TotalIncome  string `json:"totalIncome"`
	TotalExpense string `json:"totalExpense"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	s.store.Refresh(r.Context())
	snap := s.store.Snapshot()
	params := ParseMonthParams(r.URL.Query(), s.now())
	cur := s.renderer.Currency()

	writeJSON(w, http.StatusOK, summaryResponse{
		Totals:  snap.Totals,
		Version: snap.Version,
		Count:   len(snap.Transactions),
		Formatted: formattedTotals{
			NetBalance:   cur.Format(snap.Totals.NetBalance),
			TotalIncome:  cur.Format(snap.Totals.TotalIncome),
			TotalExpense: cur.Format(snap.Totals.TotalExpense),
		},
		Months: core.MonthlySeries(snap.Transactions, params.End()),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// inputMessage turns a validation error into text for the form.
func inputMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "Please enter a description."
	case errors.Is(err, core.ErrAmbiguousAmount):
		return "Write decimals with a dot (1500.50) and leave out thousands separators."
	case errors.Is(err, core.ErrNegativeAmount):
		return "Amount cannot be negative."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Please enter a valid amount."
	case errors.Is(err, core.ErrInvalidType):
		return "Choose income or expense."
	case errors.Is(err, core.ErrInvalidDate):
		return "Please enter a valid date."
	default:
		return "Please fill in all fields correctly."
	}
}

// persistWarning is non-empty when a mutation was kept in memory but could
// not be saved.
func persistWarning(err error) string {
	if errors.Is(err, ledger.ErrPersistenceWrite) {
		return "Saved for this session only: the ledger could not be written to storage."
	}
	return ""
}
