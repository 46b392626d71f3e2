// Package rest implements the REST sink (spec.md §4.6, SPEC_FULL.md §18.1):
// chi routing, typed parameter coercion, current/sample/probe/asset
// handlers, and chunked multipart/x-mixed-replace streaming. Grounded on
// the teacher's internal/api/server.go and internal/api/middleware.go,
// with WriteAuth's bearer-token mutation gate generalized to the
// remote-address/CIDR allow-list spec.md §4.6 calls for.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/mtc-agent/internal/agent"
	"github.com/snarg/mtc-agent/internal/metrics"
)

// Options configures the REST sink.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	CORSOrigins        []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MutationsEnabled   bool
	MutationAllowlist  string
	DefaultSampleCount int
	DefaultHeartbeat   time.Duration
	MaxBodyBytes       int64

	Log zerolog.Logger
}

// Server owns the http.Server and chi router bound to one Agent.
type Server struct {
	http   *http.Server
	router http.Handler
	log    zerolog.Logger
}

// Router returns the assembled chi router, middleware chain included, so
// other sinks (internal/wsock) can dispatch through the exact same routes
// and gating the REST sink serves over plain HTTP.
func (s *Server) Router() http.Handler { return s.router }

// NewServer builds the router and middleware chain (spec.md §4.6,
// SPEC_FULL.md §18.1): RequestID -> CORS -> RateLimiter -> Recoverer ->
// Logger -> metrics, then the route table.
func NewServer(a *agent.Agent, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.DefaultSampleCount <= 0 {
		opts.DefaultSampleCount = 100
	}
	if opts.DefaultHeartbeat <= 0 {
		opts.DefaultHeartbeat = 10 * time.Second
	}

	h := &handlers{agent: a, opts: opts}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(CORSWithOrigins(opts.CORSOrigins))
	r.Use(RateLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(MaxBodySize(opts.MaxBodyBytes))
	r.Use(ResponseTimeout(opts.WriteTimeout))
	r.Use(MutationAllowlist(opts.MutationsEnabled, opts.MutationAllowlist))

	r.Get("/probe", h.probeAll)
	r.Get("/{device}/probe", h.probeDevice)
	r.Get("/current", h.current)
	r.Get("/{device}/current", h.currentDevice)
	r.Get("/sample", h.sample)
	r.Get("/{device}/sample", h.sampleDevice)
	r.Get("/assets", h.listAssets)
	r.Get("/asset/{id}", h.getAsset)
	r.Put("/asset/{id}", h.putAsset)
	r.Post("/asset/{id}", h.putAsset)
	r.Delete("/asset/{id}", h.deleteAsset)
	r.Delete("/assets", h.deleteAllAssets)

	return &Server{
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  opts.ReadTimeout,
			IdleTimeout:  opts.IdleTimeout,
			WriteTimeout: 0, // streaming endpoints manage their own deadlines
		},
		router: r,
		log:    opts.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("rest sink listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
