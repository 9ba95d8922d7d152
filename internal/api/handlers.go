package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/loader"
	"pdufa-lab/internal/storage"
)

var errUnavailable = errors.New("store not configured")

// AnalyzeRequest carries one event record to score.
type AnalyzeRequest struct {
	Record  json.RawMessage `json:"record"`
	AsOf    string          `json:"as_of,omitempty"` // YYYY-MM-DD, defaults to today
	Persist bool            `json:"persist,omitempty"`
}

// AnalyzeResponse is a full analysis plus its derived CRL view.
type AnalyzeResponse struct {
	EventID        string          `json:"event_id"`
	CRLProbability float64         `json:"crl_probability"`
	RiskTier       domain.RiskTier `json:"risk_tier"`
	PredictedCRL   bool            `json:"predicted_crl"`
	analyzer.Result
}

// QuickResponse is the probability-only answer.
type QuickResponse struct {
	EventID     string  `json:"event_id"`
	Probability float64 `json:"probability"`
}

// ScenarioRequest scores a base record and named variants. Each variant is a
// partial record whose fields replace the base record's.
type ScenarioRequest struct {
	Record    json.RawMessage            `json:"record"`
	AsOf      string                     `json:"as_of,omitempty"`
	Scenarios map[string]json.RawMessage `json:"scenarios"`
}

// ScenarioResponse holds base and variant analyses with probability deltas.
type ScenarioResponse struct {
	EventID string             `json:"event_id"`
	Deltas  map[string]float64 `json:"deltas"`
	analyzer.ScenarioResults
}

// SimulateRequest evaluates one factor in isolation.
type SimulateRequest struct {
	Record  json.RawMessage `json:"record"`
	AsOf    string          `json:"as_of,omitempty"`
	Current float64         `json:"current"`
}

// ToggleRequest is the optional body of enable and disable calls.
type ToggleRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) parseRecord(raw json.RawMessage) (domain.EventRecord, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.EventRecord{}, fmt.Errorf("%w: record is required", errBadRequest)
	}
	rec, err := loader.ParseRecord(raw)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return rec, nil
}

func (s *Server) asOf(v string) (time.Time, error) {
	if v == "" {
		return s.now(), nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of: %v", errBadRequest, err)
	}
	return d.Time, nil
}

// contextFor parses the record and collapses it as of asOf.
func (s *Server) contextFor(raw json.RawMessage, asOf string) (domain.EventRecord, *domain.AnalysisContext, error) {
	rec, err := s.parseRecord(raw)
	if err != nil {
		return rec, nil, err
	}
	at, err := s.asOf(asOf)
	if err != nil {
		return rec, nil, err
	}
	ctx, err := loader.ToContext(rec, at)
	if err != nil {
		return rec, nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return rec, ctx, nil
}

func newAnalyzeResponse(eventID string, res analyzer.Result) AnalyzeResponse {
	return AnalyzeResponse{
		EventID:        eventID,
		CRLProbability: res.CRLProbability(),
		RiskTier:       res.RiskTier(),
		PredictedCRL:   res.PredictsCRL(),
		Result:         res,
	}
}

// record stores and publishes one ad-hoc analysis.
func (s *Server) record(r *http.Request, rec *domain.AnalysisRecord, persist bool) error {
	if persist {
		if s.analyses == nil {
			return errUnavailable
		}
		err := s.analyses.Insert(r.Context(), rec)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("store analysis: %w", err)
		}
	}
	if s.hub != nil {
		s.hub.Publish(rec)
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, ctx, err := s.contextFor(req.Record, req.AsOf)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Persist {
		if s.events == nil {
			writeError(w, errUnavailable)
			return
		}
		s.stamp(&rec)
		if err := s.events.Upsert(r.Context(), &rec); err != nil {
			writeError(w, fmt.Errorf("store event: %w", err))
			return
		}
	}

	res := s.analyzer.Analyze(ctx)
	if err := s.record(r, res.Record(rec.EventID, "", ctx.PDUFADate, rec.Outcome), req.Persist); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(rec.EventID, res))
}

func (s *Server) handleAnalyzeQuick(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, ctx, err := s.contextFor(req.Record, req.AsOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuickResponse{EventID: rec.EventID, Probability: s.analyzer.AnalyzeQuick(ctx)})
}

func (s *Server) handleAnalyzeScenarios(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, base, err := s.contextFor(req.Record, req.AsOf)
	if err != nil {
		writeError(w, err)
		return
	}

	variants := make(map[string]*domain.AnalysisContext, len(req.Scenarios))
	for name, patch := range req.Scenarios {
		v, err := applyPatch(rec, patch)
		if err != nil {
			writeError(w, fmt.Errorf("%w: scenario %s: %v", errBadRequest, name, err))
			return
		}
		ctx, err := loader.ToContext(v, base.AnalysisDate)
		if err != nil {
			writeError(w, fmt.Errorf("%w: scenario %s: %w", errBadRequest, name, err))
			return
		}
		variants[name] = ctx
	}

	out, err := s.analyzer.AnalyzeWithScenarios(base, variants)
	if err != nil {
		writeError(w, err)
		return
	}
	deltas := make(map[string]float64, len(out.Order))
	for _, name := range out.Order {
		deltas[name], _ = out.Delta(name)
	}
	writeJSON(w, http.StatusOK, ScenarioResponse{EventID: rec.EventID, Deltas: deltas, ScenarioResults: out})
}

// applyPatch overlays the fields present in patch onto a copy of base and
// validates the result like any incoming record.
func applyPatch(base domain.EventRecord, patch json.RawMessage) (domain.EventRecord, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return domain.EventRecord{}, err
	}
	var out domain.EventRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.EventRecord{}, err
	}
	if err := json.Unmarshal(patch, &out); err != nil {
		return domain.EventRecord{}, err
	}
	if err := loader.Normalize(&out); err != nil {
		return domain.EventRecord{}, err
	}
	return out, nil
}

func (s *Server) stamp(rec *domain.EventRecord) {
	now := s.now()
	if rec.CollectedAt.IsZero() {
		rec.CollectedAt = now
	}
	rec.UpdatedAt = now
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, errUnavailable)
		return
	}

	var (
		events []*domain.EventRecord
		err    error
	)
	q := r.URL.Query()
	switch {
	case q.Get("ticker") != "":
		events, err = s.events.GetByTicker(r.Context(), q.Get("ticker"))
	case q.Get("outcome") != "":
		outcome := domain.Outcome(strings.ToLower(q.Get("outcome")))
		if !outcome.IsValid() {
			writeError(w, fmt.Errorf("%w: unknown outcome %q", errBadRequest, q.Get("outcome")))
			return
		}
		events, err = s.events.GetByOutcome(r.Context(), outcome)
	default:
		events, err = s.events.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handlePutEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, errUnavailable)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: read body: %v", errBadRequest, err))
		return
	}
	rec, err := s.parseRecord(body)
	if err != nil {
		s.recordIngest(0, 1)
		writeError(w, err)
		return
	}
	s.stamp(&rec)
	if err := s.events.Upsert(r.Context(), &rec); err != nil {
		writeError(w, err)
		return
	}
	s.recordIngest(1, 0)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) recordIngest(stored, rejected int) {
	if s.metrics != nil {
		s.metrics.RecordIngest(stored, 0, rejected)
	}
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, errUnavailable)
		return
	}
	rec, err := s.events.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetEventAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, errUnavailable)
		return
	}
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("history") == "true" {
		records, err := s.analyses.GetByEventID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []*domain.AnalysisRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"analyses": records})
		return
	}

	rec, err := s.analyses.GetLatest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAnalyzeEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, errUnavailable)
		return
	}
	rec, err := s.events.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	at, err := s.asOf(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, err := loader.ToContext(*rec, at)
	if err != nil {
		writeError(w, err)
		return
	}

	res := s.analyzer.Analyze(ctx)
	if err := s.record(r, res.Record(rec.EventID, "", ctx.PDUFADate, rec.Outcome), s.analyses != nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(rec.EventID, res))
}

func (s *Server) handleListFactors(w http.ResponseWriter, r *http.Request) {
	factors := s.analyzer.ListRegisteredFactors()
	if layer := r.URL.Query().Get("layer"); layer != "" {
		l, err := factor.ParseLayer(layer)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		factors = s.analyzer.Registry().LayerFactors(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"factors": factors})
}

func (s *Server) handleGetFactor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.analyzer.GetFactorInfo(name)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", factor.ErrUnknownFactor, name))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleToggleFactor(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var req ToggleRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
				return
			}
		}

		reg := s.analyzer.Registry()
		if err := reg.SetEnabled(name, enable, req.Reason); err != nil {
			writeError(w, err)
			return
		}

		info, _ := reg.Get(name)
		s.logger.Info().Str("factor", name).Bool("enabled", info.Enabled).Str("reason", req.Reason).Msg("factor toggled")
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleSimulateFactor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.analyzer.GetFactorInfo(name); !ok {
		writeError(w, fmt.Errorf("%w: %s", factor.ErrUnknownFactor, name))
		return
	}

	var req SimulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Current < 0 || req.Current > 1 {
		writeError(w, fmt.Errorf("%w: current must be in [0,1]", errBadRequest))
		return
	}
	_, ctx, err := s.contextFor(req.Record, req.AsOf)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.analyzer.SimulateFactor(name, ctx, req.Current)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
