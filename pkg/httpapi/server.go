package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/authz"
	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/escalation"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/identity"
	"github.com/P-U-C/b1e55ed/pkg/karma"
	"github.com/P-U-C/b1e55ed/pkg/killswitch"
	"github.com/P-U-C/b1e55ed/pkg/orchestrator"
	"github.com/P-U-C/b1e55ed/pkg/projections"
)

// viewCacheTTL is how long a cached read-endpoint snapshot is trusted
// before the next request recomputes it, even if the log hasn't moved —
// bounds staleness for a multi-process ingress tier sharing RedisViewCache.
const viewCacheTTL = 5 * time.Second

// Server bundles every engine the ingress boundary fronts. One Server
// exists per node process; it owns no state the core engines don't
// already own, except the read-side projection cache.
type Server struct {
	es           *eventstore.EventStore
	orchestrator *orchestrator.Orchestrator
	killSwitch   *killswitch.KillSwitch
	karmaEngine  *karma.Engine
	contributors *contributor.Engine
	escalations  *escalation.Manager
	authz        *authz.Engine
	tokens       *identity.TokenManager
	upcasters    *projections.UpcastRegistry
	cache        ViewCache
	dedupe       DedupeStore
	log          *slog.Logger
	clock        func() time.Time

	mu       sync.RWMutex
	views    *projections.Views
	viewsSeq uint64
}

// Deps is every collaborator NewServer wires into a Server. Cache and
// Dedupe default to in-memory implementations when nil, so a single-node
// deployment doesn't need Redis just to boot.
type Deps struct {
	EventStore   *eventstore.EventStore
	Orchestrator *orchestrator.Orchestrator
	KillSwitch   *killswitch.KillSwitch
	Karma        *karma.Engine
	Contributors *contributor.Engine
	Escalations  *escalation.Manager
	Authz        *authz.Engine
	Tokens       *identity.TokenManager
	Upcasters    *projections.UpcastRegistry
	Cache        ViewCache
	Dedupe       DedupeStore
	Log          *slog.Logger
}

// NewServer builds a Server and performs the initial projection rebuild
// from the event log. RegisterRolePermissions must already have been
// called on deps.Authz (or its tuples loaded from elsewhere) before any
// request is served; NewServer does not do this itself, since a node
// restoring an already-populated authz engine must not have its tuples
// silently re-applied on top of operator-made changes.
func NewServer(ctx context.Context, deps Deps) (*Server, error) {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = NewMemoryViewCache()
	}
	if deps.Dedupe == nil {
		deps.Dedupe = NewMemoryDedupeStore(24 * time.Hour)
	}

	s := &Server{
		es:           deps.EventStore,
		orchestrator: deps.Orchestrator,
		killSwitch:   deps.KillSwitch,
		karmaEngine:  deps.Karma,
		contributors: deps.Contributors,
		escalations:  deps.Escalations,
		authz:        deps.Authz,
		tokens:       deps.Tokens,
		upcasters:    deps.Upcasters,
		cache:        deps.Cache,
		dedupe:       deps.Dedupe,
		log:          deps.Log,
		clock:        time.Now,
	}

	if _, _, err := s.refreshViews(ctx); err != nil {
		return nil, fmt.Errorf("httpapi: initial projection rebuild: %w", err)
	}
	return s, nil
}

// refreshViews tails the event log from the last sequence this Server has
// folded in, applying each new event into the cached Views. It never
// replays from genesis after the first call — that already happened in
// NewServer.
func (s *Server) refreshViews(ctx context.Context) (*projections.Views, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.views == nil {
		rebuildHead, err := s.es.Head(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("httpapi: read log head: %w", err)
		}
		views, _, err := projections.Rebuild(ctx, s.es, s.upcasters)
		if err != nil {
			return nil, 0, err
		}
		s.views = views
		s.viewsSeq = rebuildHead.Seq
	}

	head, err := s.es.Head(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("httpapi: read log head: %w", err)
	}
	n := head.Seq
	for seq := s.viewsSeq + 1; seq <= n; seq++ {
		e, err := s.es.Get(ctx, seq)
		if err != nil {
			return nil, 0, fmt.Errorf("httpapi: read event %d: %w", seq, err)
		}
		if s.upcasters != nil {
			if payload, ok, uerr := s.upcasters.Upcast(e.Type, e.Payload); uerr == nil && ok {
				e.Payload = payload
			}
		}
		if err := projections.Apply(s.views, e); err != nil {
			s.log.Warn("httpapi: live tail could not apply event", "seq", seq, "type", e.Type, "err", err)
		}
	}
	s.viewsSeq = n
	return s.views, s.viewsSeq, nil
}

// Routes builds the full middleware chain and route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/events", s.handleAppendEvent)
	mux.HandleFunc("POST /v1/signals", s.handleSubmitSignal)
	mux.HandleFunc("POST /v1/cycles", s.handleRunCycle)
	mux.HandleFunc("GET /v1/kill-switch", s.handleGetKillSwitch)
	mux.HandleFunc("POST /v1/kill-switch/deescalate", s.handleRequestDeescalate)
	mux.HandleFunc("POST /v1/kill-switch/deescalate/approve", s.handleApproveDeescalate)
	mux.HandleFunc("POST /v1/kill-switch/deescalate/apply", s.handleApplyDeescalate)
	mux.HandleFunc("POST /v1/karma/settle", s.handleSettleKarma)
	mux.HandleFunc("GET /v1/positions", s.handleGetPositions)
	mux.HandleFunc("GET /v1/regime", s.handleGetRegime)
	mux.HandleFunc("GET /v1/leaderboard", s.handleGetLeaderboard)

	var handler http.Handler = mux
	handler = Authenticate(s.tokens)(handler)
	handler = Logging(s.log)(handler)
	handler = Recover(s.log)(handler)
	handler = RequestID(handler)
	return handler
}
