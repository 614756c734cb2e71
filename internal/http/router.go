package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/brand"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/embedding"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/export"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/importcsv"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/http/search"
)

type Options struct {
	Verifier       *auth.Verifier
	AllowedOrigins []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}).Handler
}

func New(
	opts Options,
	receiptsV1 *receipt.Handler,
	searchV1 *search.Handler,
	embeddingsV1 *embedding.Handler,
	importV1 *importcsv.Handler,
	brandsV1 *brand.Handler,
	exportV1 *export.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if len(opts.AllowedOrigins) > 0 {
		router.Use(CORS(opts.AllowedOrigins))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(opts.Verifier))

		r.Route("/receipts", receiptsV1.Routes)

		r.Route("/search", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			searchV1.Routes(r)
		})

		r.Route("/embeddings", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			embeddingsV1.Routes(r)
		})

		r.Route("/import", importV1.Routes)
		r.Route("/brands", brandsV1.Routes)

		r.Route("/export", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			exportV1.Routes(r)
		})
	})

	return router
}
