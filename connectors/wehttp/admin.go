package wehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weegigs/wee-streams-go/restore"
)

// OffsetsProvider exposes the cached online offsets of a restore process.
type OffsetsProvider interface {
	Offsets() restore.TopicPartitionOffsets
}

type AdminOption func(*admin)

func WithOffsets(offsets OffsetsProvider) AdminOption {
	return func(a *admin) {
		a.offsets = offsets
	}
}

func WithGatherer(gatherer prometheus.Gatherer) AdminOption {
	return func(a *admin) {
		a.gatherer = gatherer
	}
}

type admin struct {
	offsets  OffsetsProvider
	gatherer prometheus.Gatherer
}

// NewAdminHandler serves /healthz, /metrics and, for restore processes,
// /offsets.
func NewAdminHandler(options ...AdminOption) http.Handler {
	a := &admin{}
	for _, option := range options {
		option(a)
	}

	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	if a.offsets != nil {
		r.Get("/offsets", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, a.offsets.Offsets())
		})
	}

	return Traced(r, "we-admin")
}
