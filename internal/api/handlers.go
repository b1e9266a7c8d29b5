// Package api serves the booking service over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"appointment-booking-api/internal/directory"
	"appointment-booking-api/internal/middleware"
	"appointment-booking-api/internal/scheduling"
)

type API struct {
	router  *mux.Router
	svc     *scheduling.Service
	dir     *directory.Directory
	hours   scheduling.Hours
	limiter *middleware.RateLimiter
	log     *slog.Logger
}

func NewAPI(svc *scheduling.Service, dir *directory.Directory, hours scheduling.Hours, limiter *middleware.RateLimiter, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		router:  mux.NewRouter(),
		svc:     svc,
		dir:     dir,
		hours:   hours,
		limiter: limiter,
		log:     log.With("component", "http"),
	}
}

func (a *API) Router() *mux.Router { return a.router }

func (a *API) RegisterRoutes() {
	limited := middleware.RateLimitHTTP(a.limiter)

	a.router.Use(middleware.Identify(a.dir, a.log))
	a.router.HandleFunc("/health", a.health).Methods(http.MethodGet)

	a.router.Handle("/register", limited(http.HandlerFunc(a.register))).Methods(http.MethodPost)
	a.router.Handle("/login", limited(http.HandlerFunc(a.login))).Methods(http.MethodPost)
	a.router.HandleFunc("/logout", a.logout).Methods(http.MethodPost)
	a.router.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	a.router.HandleFunc("/users/{id}", a.deleteUser).Methods(http.MethodDelete)

	a.router.HandleFunc("/appointments", a.createAppointment).Methods(http.MethodPost)
	a.router.HandleFunc("/appointments", a.listAppointments).Methods(http.MethodGet)
	a.router.HandleFunc("/appointments/{id}", a.cancelAppointment).Methods(http.MethodDelete)
	a.router.HandleFunc("/slots", a.availableSlots).Methods(http.MethodGet)
}

// Handler wraps the router with CORS, panic recovery and access logging.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(a.log.Handler(), slog.LevelError)),
	)(h)
	return handlers.CustomLoggingHandler(io.Discard, h, a.accessLog)
}

func (a *API) accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	a.log.Info("request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp),
		"remote", p.Request.RemoteAddr,
	)
}

type errorResponse struct {
	Message string `json:"message"`
}

func (a *API) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.log.Error("encode response", "error", err)
	}
}

func (a *API) fail(w http.ResponseWriter, status int, msg string) {
	a.respond(w, status, errorResponse{Message: msg})
}

// failErr maps domain errors onto status codes; anything unknown is a 500
// and gets logged.
func (a *API) failErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput),
		errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, directory.ErrEmailTaken):
		a.fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		a.fail(w, http.StatusConflict, scheduling.ErrSlotConflict.Error())
	case errors.Is(err, directory.ErrNotFound):
		a.fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrUnauthenticated):
		a.fail(w, http.StatusUnauthorized, "invalid credentials")
	default:
		a.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		a.fail(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
