package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/casemanager"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/locks"
	"github.com/joyax/pool-patrol/pkg/roster"
	"github.com/joyax/pool-patrol/pkg/store"
)

// Server exposes the investigation engine over HTTP.
type Server struct {
	manager *casemanager.Manager
	store   store.Store
	rosters *roster.Service
	tokens  *TokenManager
	limiter *GlobalRateLimiter
	logger  *slog.Logger
	clock   func() time.Time
}

// NewServer wires the HTTP surface.
func NewServer(manager *casemanager.Manager, st store.Store, tokens *TokenManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		manager: manager,
		store:   st,
		rosters: roster.NewService(st),
		tokens:  tokens,
		limiter: NewGlobalRateLimiter(20, 40),
		logger:  logger.With("component", "api"),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (s *Server) WithClock(clock func() time.Time) *Server {
	s.clock = clock
	return s
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/investigations/{vanpool_id}", s.handleInvestigate)
	mux.HandleFunc("GET /api/approvals", s.handleListApprovals)
	mux.HandleFunc("POST /api/approvals/{checkpoint_id}", s.handleResolveApproval)
	mux.HandleFunc("GET /api/cases", s.handleListCases)
	mux.HandleFunc("GET /api/cases/{case_id}", s.handleGetCase)
	mux.HandleFunc("GET /api/cases/{case_id}/audit", s.handleCaseAudit)
	mux.HandleFunc("GET /api/cases/{case_id}/emails", s.handleCaseEmails)
	mux.HandleFunc("POST /api/emails/{thread_id}/inbound", s.handleInboundEmail)
	mux.HandleFunc("GET /api/vanpools", s.handleListVanpools)
	mux.HandleFunc("GET /api/vanpools/{vanpool_id}", s.handleGetVanpool)
	mux.HandleFunc("GET /api/vanpools/{vanpool_id}/roster", s.handleVanpoolRoster)
	mux.HandleFunc("GET /api/employees/{employee_id}", s.handleGetEmployee)

	var h http.Handler = mux
	h = s.tokens.Middleware(h)
	h = s.limiter.Middleware(h)
	h = RequestLogger(s.logger)(h)
	h = RequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	vanpoolID := r.PathValue("vanpool_id")

	result, err := s.manager.Investigate(r.Context(), vanpoolID)
	if err != nil {
		if errors.Is(err, locks.ErrHeld) {
			WriteConflict(w, "An investigation cycle is already running for this vanpool")
			return
		}
		if errors.Is(err, store.ErrCheckpointPending) {
			WriteConflict(w, "The case already has a decision awaiting human review")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decisionRequest is the body of POST /api/approvals/{checkpoint_id}.
type decisionRequest struct {
	Decision   string                `json:"decision"`
	DecidedBy  string                `json:"decided_by"`
	Reason     string                `json:"reason,omitempty"`
	EditedArgs *contracts.ActionArgs `json:"edited_args,omitempty"`
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	checkpointID := r.PathValue("checkpoint_id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	kind := contracts.DecisionKind(req.Decision)
	switch kind {
	case contracts.DecisionApprove, contracts.DecisionEdit, contracts.DecisionReject:
	default:
		WriteBadRequest(w, "decision must be approve, edit, or reject")
		return
	}
	if kind == contracts.DecisionEdit && req.EditedArgs == nil {
		WriteBadRequest(w, "edit decision requires edited_args")
		return
	}

	result, err := s.manager.Resume(r.Context(), checkpointID, contracts.Decision{
		Kind:       kind,
		DecidedBy:  req.DecidedBy,
		Reason:     req.Reason,
		EditedArgs: req.EditedArgs,
	})
	if err != nil {
		if errors.Is(err, approval.ErrDecided) {
			WriteConflict(w, "Checkpoint was already decided or does not exist")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown checkpoint")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.store.ListPendingCheckpoints(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	filter := store.CaseFilter{
		Status:    contracts.CaseStatus(r.URL.Query().Get("status")),
		VanpoolID: r.URL.Query().Get("vanpool_id"),
	}
	cases, err := s.store.ListCases(r.Context(), filter)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCase(r.Context(), r.PathValue("case_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown case")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCaseAudit(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case_id")
	if _, err := s.store.GetCase(r.Context(), caseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown case")
			return
		}
		WriteInternal(w, err)
		return
	}
	trail, err := s.store.ListAudit(r.Context(), caseID)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

// caseEmailsResponse bundles the case's thread with its ordered messages.
type caseEmailsResponse struct {
	Thread   *contracts.EmailThread `json:"thread"`
	Messages []*contracts.Message   `json:"messages"`
}

func (s *Server) handleCaseEmails(w http.ResponseWriter, r *http.Request) {
	thread, err := s.store.GetThreadByCase(r.Context(), r.PathValue("case_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "No thread for this case")
			return
		}
		WriteInternal(w, err)
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), thread.ThreadID)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseEmailsResponse{Thread: thread, Messages: msgs})
}

func (s *Server) handleVanpoolRoster(w http.ResponseWriter, r *http.Request) {
	vanpoolID := r.PathValue("vanpool_id")
	ros, err := s.rosters.Load(r.Context(), vanpoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown vanpool")
			return
		}
		if errors.Is(err, roster.ErrEmptyRoster) {
			writeJSON(w, http.StatusOK, &contracts.Roster{VanpoolID: vanpoolID})
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ros)
}

func (s *Server) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := s.store.GetEmployee(r.Context(), r.PathValue("employee_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown employee")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// inboundEmailRequest is the body of the inbound mail webhook.
type inboundEmailRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req inboundEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.From == "" || req.Body == "" {
		WriteBadRequest(w, "Missing required fields: from, body")
		return
	}

	thread, err := s.store.GetThread(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown thread")
			return
		}
		WriteInternal(w, err)
		return
	}

	msg := &contracts.Message{
		MessageID: store.NewMessageID(),
		ThreadID:  thread.ThreadID,
		From:      req.From,
		Body:      req.Body,
		Direction: contracts.DirectionInbound,
		Status:    contracts.MessageSent,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.AppendMessage(r.Context(), msg); err != nil {
		WriteInternal(w, err)
		return
	}
	s.logger.Info("inbound email recorded", "thread_id", thread.ThreadID, "message_id", msg.MessageID)
	writeJSON(w, http.StatusAccepted, msg)
}

func (s *Server) handleListVanpools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.store.ListVanpools(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handleGetVanpool(w http.ResponseWriter, r *http.Request) {
	vp, err := s.store.GetVanpool(r.Context(), r.PathValue("vanpool_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Unknown vanpool")
			return
		}
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
