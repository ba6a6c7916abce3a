package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/videos", func(r chi.Router) {
		r.Post("/", app.UploadHandler)
		r.Get("/", app.ListVideosHandler)
		r.Get("/search", app.SearchVideosHandler)
		r.Get("/{id}", app.GetVideoHandler)
		r.Get("/{id}/stream", app.StreamVideoHandler)
		r.Post("/{id}/index", app.StartIndexHandler)
		r.Get("/{id}/manifest", app.ManifestHandler)
		r.Get("/{id}/captions.srt", app.CaptionsHandler)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/{id}", app.RunStatusHandler)
		r.Post("/{id}/stop", app.StopRunHandler)
		r.Get("/{id}/archive", app.ArchiveHandler)
	})

	return r
}
