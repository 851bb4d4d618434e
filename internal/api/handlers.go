package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/ai"
	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/pipeline"
	"github.com/kdimtricp/detectsnap/internal/search"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

var allowedImageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type App struct {
	Controller    *pipeline.Controller
	Images        storage.Images
	Hub           *Hub
	MaxUploadSize int64
	Logger        *zap.SugaredLogger
}

// Response is the body of every /api call that touches the session.
type Response struct {
	State  pipeline.State          `json:"state"`
	Record *models.Record          `json:"record,omitempty"`
	Image  string                  `json:"image,omitempty"`
	Error  *pipeline.SurfacedError `json:"error,omitempty"`
}

func (app *App) logger() *zap.SugaredLogger {
	if app.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return app.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) StateHandler(w http.ResponseWriter, r *http.Request) {
	app.respond(w, Response{State: app.Controller.Snapshot()}, nil)
}

func (app *App) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	var capture pipeline.CaptureResult
	if err := json.NewDecoder(r.Body).Decode(&capture); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid capture payload"})
		return
	}

	err := app.Controller.Acquire(r.Context(), capture)
	app.respond(w, Response{State: app.Controller.Snapshot()}, err)
}

// UploadHandler stores an uploaded image and runs it through detection, for
// clients that cannot hand over a local image reference.
func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to get file"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		ct, ok := allowedImageExts[strings.ToLower(filepath.Ext(header.Filename))]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only JPEG and PNG images are allowed"})
			return
		}
		contentType = ct
	}

	name, err := app.Images.SaveImage(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		app.logger().Errorw("failed to store upload", "filename", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
		return
	}

	path, err := app.Images.Path(name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve image"})
		return
	}

	err = app.Controller.Acquire(r.Context(), pipeline.CaptureResult{URI: path})
	app.respond(w, Response{State: app.Controller.Snapshot(), Image: name}, err)
}

func (app *App) CommitHandler(w http.ResponseWriter, r *http.Request) {
	record, err := app.Controller.Commit(r.Context())
	if err != nil {
		app.respond(w, Response{State: app.Controller.Snapshot()}, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{State: app.Controller.Snapshot(), Record: record})
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	err := app.Controller.Reset()
	app.respond(w, Response{State: app.Controller.Snapshot()}, err)
}

func (app *App) EnterBrowsingHandler(w http.ResponseWriter, r *http.Request) {
	err := app.Controller.EnterBrowsing(r.Context())
	app.respond(w, Response{State: app.Controller.Snapshot()}, err)
}

func (app *App) ExitBrowsingHandler(w http.ResponseWriter, r *http.Request) {
	err := app.Controller.ExitBrowsing()
	app.respond(w, Response{State: app.Controller.Snapshot()}, err)
}

// ListRecordsHandler returns the cached listing, optionally narrowed with
// ?class=, ?min_confidence= and ?limit=.
func (app *App) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	records := search.Search(app.Controller.Snapshot().Saved, query)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func parseSearchQuery(r *http.Request) (search.Query, error) {
	values := r.URL.Query()
	query := search.Query{Class: values.Get("class")}

	if v := values.Get("min_confidence"); v != "" {
		minConfidence, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return query, errors.New("invalid min_confidence")
		}
		query.MinConfidence = minConfidence
	}
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return query, errors.New("invalid limit")
		}
		query.Limit = limit
	}
	return query, nil
}

func (app *App) SelectRecordHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	err := app.Controller.SelectRecord(id)
	app.respond(w, Response{State: app.Controller.Snapshot()}, err)
}

func (app *App) ImageHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	file, err := app.Images.OpenImage(name)
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	if ct, ok := allowedImageExts[strings.ToLower(filepath.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, time.Time{}, file)
}

// respond writes resp with 200, or with the status matching err.
func (app *App) respond(w http.ResponseWriter, resp Response, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = pipeline.Surface(err)
		if status >= http.StatusInternalServerError {
			app.logger().Warnw("request failed", "status", status, "error", err)
		}
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var (
		precondErr *models.PreconditionError
		transErr   *pipeline.TransitionError
		detErr     *ai.DetectionError
	)
	switch {
	case errors.As(err, &precondErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrBusy), errors.As(err, &transErr):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.As(err, &detErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
