package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/P-U-C/b1e55ed/pkg/escalation/ceremony"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/killswitch"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/P-U-C/b1e55ed/pkg/projections"
)

// decodeJSON reads and decodes a request body, rejecting unknown fields so
// a typo in a client's request surfaces as an error instead of silently
// doing nothing.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// principal pulls the authenticated claims out of the request context and
// authorizes the given action for its principal type, writing an error
// response and returning false if either step fails.
func (s *Server) principal(w http.ResponseWriter, r *http.Request, action Action) (claimsSubject string, ok bool) {
	claims, found := ClaimsFromContext(r.Context())
	if !found {
		writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", ErrUnauthenticated.Error())
		return "", false
	}
	if err := Authorize(r.Context(), s.authz, action, claims.Type); err != nil {
		writeError(w, s.log, err)
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type appendEventRequest struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	DedupeKey string          `json:"dedupe_key,omitempty"`
	Source    string          `json:"source,omitempty"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// handleAppendEvent is the raw append_event operation: the caller supplies
// the event type and payload directly, bypassing every domain-specific
// validation the other write endpoints apply. It is reserved to the
// operator role for exactly that reason.
func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionAppendRawEvent); !ok {
		return
	}

	var req appendEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}
	if req.Type == "" || len(req.Payload) == 0 {
		writeError(w, s.log, fmt.Errorf("%w: type and payload are required", ErrInvalidType))
		return
	}
	if _, _, err := projections.ParseSchemaVersion(eventstore.Kind(req.Type)); err != nil {
		writeError(w, s.log, fmt.Errorf("%w: %v", ErrSchemaVersionUnknown, err))
		return
	}

	if req.DedupeKey != "" {
		if cached, found := s.dedupe.Get(req.DedupeKey); found {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	ev, err := s.es.AppendRawWithMeta(r.Context(), eventstore.Kind(req.Type), req.Payload, eventstore.AppendMeta{
		Source:    req.Source,
		TraceID:   req.TraceID,
		DedupeKey: req.DedupeKey,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.DedupeKey != "" {
		s.dedupe.Set(req.DedupeKey, body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

type submitSignalRequest struct {
	ContributorID string          `json:"contributor_id"`
	EventType     string          `json:"event_type"`
	Conviction    float64         `json:"conviction"`
	Payload       json.RawMessage `json:"payload"`
}

type submitSignalResponse struct {
	EventID       string `json:"event_id"`
	AttributionID string `json:"attribution_id"`
}

func (s *Server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSubmitSignal); !ok {
		return
	}

	var req submitSignalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	eventID, attributionID, err := s.contributors.SubmitSignal(r.Context(), req.ContributorID, req.EventType, req.Conviction, req.Payload)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitSignalResponse{EventID: eventID, AttributionID: attributionID})
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionTriggerCycle); !ok {
		return
	}

	var in orchestrator.CycleInput
	if err := decodeJSON(r, &in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	result, err := s.orchestrator.RunCycle(r.Context(), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if len(result.KillSwitchBlocked) > 0 {
		writeError(w, s.log, fmt.Errorf("%w: refused entry for %v", ErrKillSwitchActive, result.KillSwitchBlocked))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type killSwitchResponse struct {
	Level   killswitch.Level `json:"level"`
	Message string           `json:"message"`
}

func (s *Server) handleGetKillSwitch(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSubmitSignal); !ok {
		// Reading the kill switch level is not a write; any authenticated
		// role that may submit a signal may also see what the node will let
		// it do, which is every role there is.
		return
	}
	level := s.killSwitch.Level()
	writeJSON(w, http.StatusOK, killSwitchResponse{Level: level, Message: killswitch.Messages[level]})
}

type requestDeescalateRequest struct {
	TargetLevel killswitch.Level `json:"target_level"`
	Reason      string           `json:"reason"`
}

func (s *Server) handleRequestDeescalate(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.principal(w, r, ActionSetKillSwitch)
	if !ok {
		return
	}

	var req requestDeescalateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	intent, err := s.killSwitch.RequestDeescalate(r.Context(), s.escalations, subject, req.TargetLevel, req.Reason)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

type approveDeescalateRequest struct {
	IntentID      string `json:"intent_id"`
	ApproverID    string `json:"approver_id"`
	TimelockMs    int64  `json:"timelock_ms"`
	HoldMs        int64  `json:"hold_ms"`
	UISummaryHash string `json:"ui_summary_hash"`
	ChallengeHash string `json:"challenge_hash,omitempty"`
	ResponseHash  string `json:"response_hash,omitempty"`
	Signature     string `json:"signature"`
}

// handleApproveDeescalate requires the caller to have gone through the
// operator-facing approval ceremony (timelock, hold, signed UI summary,
// and a challenge/response if the manager's policy demands one) before
// the vote is recorded — a bare POST with just an approver ID is rejected
// even from an otherwise-authorized operator token.
func (s *Server) handleApproveDeescalate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSetKillSwitch); !ok {
		return
	}

	var req approveDeescalateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	ceremonyReq := ceremony.CeremonyRequest{
		DecisionID:    req.IntentID,
		TimelockMs:    req.TimelockMs,
		HoldMs:        req.HoldMs,
		UISummaryHash: req.UISummaryHash,
		ChallengeHash: req.ChallengeHash,
		ResponseHash:  req.ResponseHash,
		Signature:     req.Signature,
		SubmittedAt:   s.clock().Unix(),
	}

	receipt, err := s.escalations.ApproveWithCeremony(r.Context(), req.IntentID, req.ApproverID, ceremonyReq)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type applyDeescalateRequest struct {
	IntentID string `json:"intent_id"`
}

// handleApplyDeescalate performs the final step of the de-escalation
// ceremony: the intent must already carry a quorum of approvals recorded
// by handleApproveDeescalate, and the caller's own claims must satisfy
// ApplyDeescalate's elevated-authorization check.
func (s *Server) handleApplyDeescalate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSetKillSwitch); !ok {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	var req applyDeescalateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	intent, err := s.escalations.GetIntent(req.IntentID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	decision, err := s.killSwitch.ApplyDeescalate(r.Context(), intent, claims, s.authz)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type settleKarmaRequest struct {
	IntentIDs     []string `json:"intent_ids"`
	TxHash        string   `json:"tx_hash"`
	ExecutionMode string   `json:"execution_mode"`
}

func (s *Server) handleSettleKarma(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSettleKarma); !ok {
		return
	}

	var req settleKarmaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "InvalidType", err.Error())
		return
	}

	settlement := s.karmaEngine.Settle(r.Context(), req.IntentIDs, req.TxHash, req.ExecutionMode)
	writeJSON(w, http.StatusOK, settlement)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSubmitSignal); !ok {
		return
	}
	s.readCached(w, r, "positions", func(views *projections.Views) (interface{}, error) {
		return views.Positions, nil
	})
}

func (s *Server) handleGetRegime(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSubmitSignal); !ok {
		return
	}
	s.readCached(w, r, "regime", func(views *projections.Views) (interface{}, error) {
		return views.Regime, nil
	})
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, ActionSubmitSignal); !ok {
		return
	}
	s.readCached(w, r, "leaderboard", func(views *projections.Views) (interface{}, error) {
		return s.leaderboardSnapshot(views), nil
	})
}

// leaderboardEntry is one row of the /v1/leaderboard response: a
// contributor's score, computed at request time from the projected
// attribution history rather than cached as a number that could go stale
// between requests.
type leaderboardEntry struct {
	ContributorID string      `json:"contributor_id"`
	Role          string      `json:"role"`
	Score         float64     `json:"score"`
	LastActive    string      `json:"last_active"`
	Components    interface{} `json:"components"`
}

func (s *Server) leaderboardSnapshot(views *projections.Views) []leaderboardEntry {
	now := s.clock()
	entries := make([]leaderboardEntry, 0, len(views.Leaderboard.Entries))
	for id, entry := range views.Leaderboard.Entries {
		score, ok := projections.LeaderboardScore(views, id, now)
		if !ok {
			continue
		}
		entries = append(entries, leaderboardEntry{
			ContributorID: id,
			Role:          string(entry.Role),
			Score:         score.Value,
			LastActive:    entry.LastActive.Format("2006-01-02T15:04:05Z07:00"),
			Components:    score.Components,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

// readCached serves a dashboard read endpoint through the second-level
// ViewCache. It tails the projections first on every request, then serves
// the cached body if one exists for the current sequence.
// The cache key folds in viewsSeq so a cache entry from before the last
// refreshViews call is never served as if it were current.
func (s *Server) readCached(w http.ResponseWriter, r *http.Request, name string, read func(*projections.Views) (interface{}, error)) {
	views, seq, err := s.refreshViews(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	cacheKey := fmt.Sprintf("httpapi:view:%s:%d", name, seq)
	if cached, found, err := s.cache.Get(r.Context(), cacheKey); err == nil && found {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	value, err := read(views)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	body, err := json.Marshal(value)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.cache.Set(r.Context(), cacheKey, body, viewCacheTTL); err != nil {
		s.log.Warn("httpapi: view cache set failed", "key", cacheKey, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
