// Package httpapi serves usage reports over HTTP. It is optional: the
// watch daemon mounts it only when an address is configured.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BemreSTR/net-usage/internal/health"
	"github.com/BemreSTR/net-usage/internal/logging"
	"github.com/BemreSTR/net-usage/internal/meter"
	"github.com/BemreSTR/net-usage/internal/observability"
)

// SampleStore is the slice of the sample store the API needs.
type SampleStore interface {
	meter.SampleSource
	LatestSample(ctx context.Context, iface string) (*meter.Reading, error)
	Ready(ctx context.Context) error
}

type Server struct {
	log     *logging.Logger
	store   SampleStore
	builder *meter.Builder
	metrics *observability.Metrics
	loc     *time.Location
	iface   string
	now     func() time.Time
	r       chi.Router
}

// NewServer builds the report API. loc is the default timezone for
// calendar expressions (nil means local) and iface the default interface
// when a request names none.
func NewServer(log *logging.Logger, st SampleStore, metrics *observability.Metrics, loc *time.Location, iface string) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		log:     log,
		store:   st,
		builder: meter.NewBuilder(st),
		metrics: metrics,
		loc:     loc,
		iface:   iface,
		now:     time.Now,
		r:       chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.r }

func (s *Server) routes() {
	s.r.Use(middleware.RequestID)
	s.r.Use(s.loggingMiddleware)
	s.r.Get("/healthz", s.handleHealth)
	s.r.Get("/readyz", s.handleReady)
	s.r.Route("/v1", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/samples/latest", s.handleLatestSample)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		logger := s.log.WithRequestID(reqID)
		ctx := logging.ContextWithLogger(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := health.ReadyCheck(r.Context(), s.store); err != nil {
		logging.FromContext(r.Context(), s.log).Error("readyz failed", "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "not ready", map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context(), s.log)

	q, errs := parseReportQuery(r)
	if errs != nil {
		s.recordReport("invalid")
		writeError(w, http.StatusBadRequest, "invalid query", errs)
		return
	}
	iface := q.Iface
	if iface == "" {
		iface = s.iface
	}
	if iface == "" {
		s.recordReport("invalid")
		writeError(w, http.StatusBadRequest, "invalid query", map[string]string{"iface": "is required"})
		return
	}
	loc := s.loc
	if q.TZ != "" {
		var err error
		loc, err = time.LoadLocation(q.TZ)
		if err != nil {
			s.recordReport("invalid")
			writeError(w, http.StatusBadRequest, "invalid query", map[string]string{"tz": "unknown timezone"})
			return
		}
	}

	win, err := meter.ResolveWindow(q.expression(), loc, s.now())
	if err != nil {
		if errors.Is(err, meter.ErrInvalidExpression) {
			s.recordReport("invalid")
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		logger.Error("resolve window failed", "error", err)
		s.recordReport("error")
		writeError(w, http.StatusInternalServerError, "failed to resolve window", nil)
		return
	}

	rep, err := s.builder.Build(r.Context(), iface, win, q.Hourly)
	if err != nil {
		logger.Error("build report failed", "iface", iface, "error", err)
		s.recordReport("error")
		writeError(w, http.StatusInternalServerError, "failed to build report", nil)
		return
	}

	status := "ok"
	if !rep.Usage.SufficientData {
		status = "insufficient"
	}
	s.recordReport(status)
	writeJSON(w, http.StatusOK, toReportResponse(rep))
}

func (s *Server) handleLatestSample(w http.ResponseWriter, r *http.Request) {
	iface := strings.TrimSpace(r.URL.Query().Get("iface"))
	if iface == "" {
		iface = s.iface
	}
	if iface == "" {
		writeError(w, http.StatusBadRequest, "invalid query", map[string]string{"iface": "is required"})
		return
	}
	reading, err := s.store.LatestSample(r.Context(), iface)
	if err != nil {
		logging.FromContext(r.Context(), s.log).Error("latest sample lookup failed", "iface", iface, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load latest sample", nil)
		return
	}
	if reading == nil {
		writeError(w, http.StatusNotFound, "no samples recorded for interface", nil)
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{
		Iface:   reading.Iface,
		Time:    reading.Time,
		RxBytes: reading.RxBytes,
		TxBytes: reading.TxBytes,
	})
}

func (s *Server) recordReport(status string) {
	if s.metrics != nil {
		s.metrics.RecordReportRequest(status)
	}
}

type reportQuery struct {
	Iface  string
	Day    string
	From   string
	To     string
	Last   string
	Since  string
	TZ     string
	Hourly bool
}

func (q reportQuery) expression() meter.Expression {
	return meter.Expression{Day: q.Day, From: q.From, To: q.To, Last: q.Last, Since: q.Since}
}

func parseReportQuery(r *http.Request) (reportQuery, map[string]string) {
	vals := r.URL.Query()
	q := reportQuery{
		Iface: strings.TrimSpace(vals.Get("iface")),
		Day:   strings.TrimSpace(vals.Get("day")),
		From:  strings.TrimSpace(vals.Get("from")),
		To:    strings.TrimSpace(vals.Get("to")),
		Last:  strings.TrimSpace(vals.Get("last")),
		Since: strings.TrimSpace(vals.Get("since")),
		TZ:    strings.TrimSpace(vals.Get("tz")),
	}
	if raw := vals.Get("hourly"); raw != "" {
		hourly, err := strconv.ParseBool(raw)
		if err != nil {
			return q, map[string]string{"hourly": "must be a boolean"}
		}
		q.Hourly = hourly
	}
	return q, nil
}

type reportResponse struct {
	Iface   string     `json:"iface"`
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Samples int        `json:"samples"`
	Usage   usageJSON  `json:"usage"`
	Hourly  []hourJSON `json:"hourly,omitempty"`
}

type hourJSON struct {
	Start time.Time `json:"start"`
	Usage usageJSON `json:"usage"`
}

type usageJSON struct {
	RxBytes        uint64 `json:"rx_bytes"`
	TxBytes        uint64 `json:"tx_bytes"`
	TotalBytes     uint64 `json:"total_bytes"`
	Rx             string `json:"rx"`
	Tx             string `json:"tx"`
	Total          string `json:"total"`
	SufficientData bool   `json:"sufficient_data"`
}

type latestResponse struct {
	Iface   string    `json:"iface"`
	Time    time.Time `json:"time"`
	RxBytes uint64    `json:"rx_bytes"`
	TxBytes uint64    `json:"tx_bytes"`
}

func toReportResponse(rep *meter.Report) reportResponse {
	out := reportResponse{
		Iface:   rep.Iface,
		Start:   rep.Window.Start,
		End:     rep.Window.End,
		Samples: rep.Samples,
		Usage:   usageToJSON(rep.Usage),
	}
	for _, h := range rep.Hourly {
		out.Hourly = append(out.Hourly, hourJSON{Start: h.Start, Usage: usageToJSON(h.Usage)})
	}
	return out
}

func usageToJSON(u meter.UsageResult) usageJSON {
	return usageJSON{
		RxBytes:        u.RxBytes,
		TxBytes:        u.TxBytes,
		TotalBytes:     u.Total(),
		Rx:             humanize.IBytes(u.RxBytes),
		Tx:             humanize.IBytes(u.TxBytes),
		Total:          humanize.IBytes(u.Total()),
		SufficientData: u.SufficientData,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
