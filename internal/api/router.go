package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(app.logger()))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/ws", app.WebsocketHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", app.StateHandler)
		r.Post("/capture", app.CaptureHandler)
		r.Post("/upload", app.UploadHandler)
		r.Post("/commit", app.CommitHandler)
		r.Post("/reset", app.ResetHandler)
		r.Post("/browse", app.EnterBrowsingHandler)
		r.Delete("/browse", app.ExitBrowsingHandler)
		r.Get("/records", app.ListRecordsHandler)
		r.Post("/records/{id}/select", app.SelectRecordHandler)
		r.Get("/images/{name}", app.ImageHandler)
	})

	return r
}

func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debugw("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
