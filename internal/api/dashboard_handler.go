package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skridlevsky/interest-dash/internal/interest"
	"github.com/skridlevsky/interest-dash/internal/jira"
	"github.com/skridlevsky/interest-dash/internal/render"
)

// reportTimeout bounds one fetch/aggregate cycle; the server's WriteTimeout must exceed it
const reportTimeout = 45 * time.Second

// ReportProvider returns the (possibly cached) report for a query
type ReportProvider interface {
	Report(ctx context.Context, q interest.Query) (*interest.Report, error)
	Cached(ctx context.Context, q interest.Query) bool
}

// throttledError is returned when a client asks for too many uncached reports
type throttledError struct {
	wait time.Duration
}

func (e *throttledError) Error() string {
	return fmt.Sprintf("refresh rate exceeded, retry in %s", e.wait.Round(time.Second))
}

// DashboardHandler serves the interest table in its various formats
type DashboardHandler struct {
	reports ReportProvider
	query   interest.Query
	title   string
	refresh *IPLimiter
}

// NewDashboardHandler creates a dashboard handler for a fixed query.
// refresh, when set, limits per IP the requests that miss the cache.
func NewDashboardHandler(reports ReportProvider, query interest.Query, title string, refresh *IPLimiter) *DashboardHandler {
	return &DashboardHandler{
		reports: reports,
		query:   query,
		title:   title,
		refresh: refresh,
	}
}

func (h *DashboardHandler) report(r *http.Request) (*interest.Report, error) {
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	if h.refresh != nil && !h.reports.Cached(ctx, h.query) {
		if ok, wait := h.refresh.Reserve(r); !ok {
			return nil, &throttledError{wait: wait}
		}
	}

	report, err := h.reports.Report(ctx, h.query)
	if err != nil {
		slog.Error("Failed to build interest report", "query", h.query.JQL, "error", err)
		return nil, err
	}
	return report, nil
}

// Page handles GET {root}
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	page := render.Page{Title: h.title}

	report, err := h.report(r)
	if err != nil {
		status, page.Error = failure(w, err)
	} else {
		page.Report = report
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, page); err != nil {
		slog.Error("Failed to render dashboard", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// ErrorResponse is the JSON body of a failed report request
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON handles GET {root}api/interest
func (h *DashboardHandler) JSON(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		status, message := failure(w, err)
		respondJSON(w, status, ErrorResponse{Error: message})
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Export handles GET {root}export.csv
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	report, err := h.report(r)
	if err != nil {
		status, message := failure(w, err)
		http.Error(w, message, status)
		return
	}

	var buf bytes.Buffer
	if err := render.CSV(&buf, report); err != nil {
		slog.Error("Failed to write CSV export", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=issue-interest.csv")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// failure maps a report error to a status and message, setting Retry-After
// when the client was throttled
func failure(w http.ResponseWriter, err error) (int, string) {
	var throttled *throttledError
	if errors.As(err, &throttled) {
		wait := retryAfter(throttled.wait)
		w.Header().Set("Retry-After", wait)
		return http.StatusTooManyRequests, "Too many refreshes from your address, try again in " + wait + "s"
	}
	return upstreamFailure(err)
}

// upstreamFailure maps a report error to a status and a message fit for users
func upstreamFailure(err error) (int, string) {
	var apiErr *jira.APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, fmt.Sprintf("JIRA query failed with status %d", apiErr.StatusCode)
	case errors.Is(err, jira.ErrMalformedResponse):
		return http.StatusBadGateway, "JIRA returned a response the dashboard cannot read"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "JIRA did not answer in time"
	default:
		return http.StatusBadGateway, "JIRA query failed"
	}
}
