package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/NicolasHaas/matchadmin/pkg/match"
	"github.com/NicolasHaas/matchadmin/pkg/model"
	"github.com/NicolasHaas/matchadmin/pkg/vote"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	ServerName    string        `json:"server_name,omitempty"`
	Map           string        `json:"map,omitempty"`
	HostConnected bool          `json:"host_connected"`
	Players       int           `json:"players"`
	Match         match.Status  `json:"match"`
	Vote          *vote.Summary `json:"vote,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// StartHTTP starts the read-only HTTP API in the background. It shuts down
// when the server context is cancelled. An empty HTTPAddr disables it.
func (s *Server) StartHTTP() {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		return
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpSrv

	go func() {
		s.logger.Info("HTTP API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP API error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.HTTPAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 << 20))

	r.Get("/metrics", s.handleMetrics)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetricsJSON)
		r.Get("/bans/{steamID}", s.handlePunishment(model.KindBan))
		r.Get("/mutes/{steamID}", s.handlePunishment(model.KindMute))
		r.Get("/admins", s.handleAdmins)
		r.Get("/groups", s.handleGroups)
		r.Get("/audit", s.handleAudit)
	})
	return r
}

func respond(w http.ResponseWriter, r *http.Request, code int, body any) {
	render.Status(r, code)
	render.JSON(w, r, body)
}

func respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	respond(w, r, code, apiError{Error: message})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	err := s.do(r.Context(), func() {
		resp = StatusResponse{
			ServerName: s.serverName,
			Map:        s.mapName,
			Players:    s.roster.Count(),
			Match:      s.match.Snapshot(),
			Vote:       s.votes.Current(),
		}
	})
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "server busy")
		return
	}
	resp.HostConnected = s.link.active() != ""
	respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handlePunishment(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "steamID"), 10, 64)
		if err != nil || id == 0 {
			respondError(w, r, http.StatusBadRequest, "invalid steam id")
			return
		}
		var p *model.Punishment
		if kind == model.KindBan {
			p, err = s.ledger.ActiveBan(id)
		} else {
			p, err = s.ledger.ActiveMute(id)
		}
		if err != nil {
			s.logger.Error("api lookup failed", "kind", kind.String(), "steam_id", id, "err", err)
			respondError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if p == nil {
			respondError(w, r, http.StatusNotFound, "no active "+kind.String())
			return
		}
		respond(w, r, http.StatusOK, p)
	}
}

func (s *Server) handleAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.ledger.ListAdmins()
	if err != nil {
		s.logger.Error("api list admins failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	respond(w, r, http.StatusOK, admins)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.ledger.ListGroups()
	if err != nil {
		s.logger.Error("api list groups failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if groups == nil {
		groups = []model.AdminGroup{}
	}
	respond(w, r, http.StatusOK, groups)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxAuditLimit)
	}
	entries, err := s.ledger.ListAudit(limit)
	if err != nil {
		s.logger.Error("api list audit failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	respond(w, r, http.StatusOK, entries)
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	write("matchadmin_uptime_seconds", "Server uptime in seconds.", "gauge", m.UptimeSeconds)

	write("matchadmin_bridge_connections_total", "Lifetime host connections accepted.", "counter", m.BridgeConnections)
	write("matchadmin_bridge_active", "Attached host connections.", "gauge", m.BridgeActive)
	write("matchadmin_bridge_auth_failed_total", "Rejected host handshakes.", "counter", m.FailedAuths)
	write("matchadmin_events_total", "Host events received.", "counter", m.EventsIn)
	write("matchadmin_commands_total", "Commands sent to the host.", "counter", m.CommandsOut)
	write("matchadmin_commands_dropped_total", "Commands dropped while no host was attached.", "counter", m.CommandsDropped)

	write("matchadmin_bans_total", "Bans issued.", "counter", m.BanCount)
	write("matchadmin_unbans_total", "Bans revoked.", "counter", m.UnbanCount)
	write("matchadmin_mutes_total", "Mutes issued.", "counter", m.MuteCount)
	write("matchadmin_unmutes_total", "Mutes revoked.", "counter", m.UnmuteCount)
	write("matchadmin_kicks_total", "Players kicked.", "counter", m.KickCount)

	write("matchadmin_votes_started_total", "Votes started.", "counter", m.VotesStarted)
	write("matchadmin_votes_passed_total", "Votes passed.", "counter", m.VotesPassed)
	write("matchadmin_votes_failed_total", "Votes failed.", "counter", m.VotesFailed)
	write("matchadmin_votes_cancelled_total", "Votes cancelled.", "counter", m.VotesCancelled)

	write("matchadmin_pauses_admin_total", "Admin pauses.", "counter", m.AdminPauses)
	write("matchadmin_pauses_vote_total", "Team pauses.", "counter", m.VotePauses)
	write("matchadmin_pauses_disconnect_total", "Disconnect pauses.", "counter", m.DisconnectPauses)
	write("matchadmin_knife_rounds_total", "Knife rounds started.", "counter", m.KnifeRounds)

	write("matchadmin_commands_rejected_total", "Chat commands denied or refused.", "counter", m.RejectedCommands)
}
