// Package api wires the HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/docvault/backend/internal/api/handlers"
	"github.com/docvault/backend/internal/api/middleware"
	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/chat"
	"github.com/docvault/backend/internal/config"
	"github.com/docvault/backend/internal/document"
	"github.com/docvault/backend/internal/search"
	"github.com/docvault/backend/internal/store"
)

// Deps carries the already-constructed services the router exposes.
type Deps struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Cfg        *config.Config
	Authorizer auth.Authorizer
	Documents  *document.Service
	Retriever  *search.Retriever
	Chat       *chat.Service
	DocStore   store.DocumentStore
	TagStore   store.TagStore
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.Cfg.Server.CORSOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(d.DB, d.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	docH := handlers.NewDocumentHandler(d.Documents)
	searchH := handlers.NewSearchHandler(d.Retriever)
	tagH := handlers.NewTagHandler(d.TagStore, d.DocStore)
	chatH := handlers.NewChatHandler(d.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(d.Authorizer))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Get("/{id}/status", docH.Status)
			r.Delete("/{id}", docH.Delete)

			r.Post("/{id}/tags", tagH.Attach)
			r.Delete("/{id}/tags/{tagID}", tagH.Detach)
		})

		r.Get("/search", searchH.Search)

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tagH.List)
			r.Patch("/{id}", tagH.Rename)
			r.Post("/{id}/merge", tagH.Merge)
			r.Delete("/{id}", tagH.Delete)
		})

		r.Route("/chat/sessions", func(r chi.Router) {
			r.Post("/", chatH.CreateSession)
			r.Get("/", chatH.ListSessions)
			r.Get("/{id}", chatH.GetSession)
			r.Delete("/{id}", chatH.DeleteSession)
			r.Post("/{id}/messages", chatH.SendMessage)
			r.Post("/{id}/messages/{messageID}/feedback", chatH.SetFeedback)
		})
	})

	return r
}
