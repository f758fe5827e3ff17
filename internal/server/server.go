package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/app"
	"github.com/raysh454/cyra/internal/feed"
	"github.com/raysh454/cyra/internal/fixtures"
	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/secret"
	"github.com/raysh454/cyra/internal/session"
)

// maxLoggedBody caps how much of a request body goes into the request log.
const maxLoggedBody = 512

// Server is the loopback HTTP + WebSocket bridge a UI shell uses to drive
// the companion.
type Server struct {
	cfg       Config
	companion *app.Companion
	router    chi.Router
	upgrader  websocket.Upgrader
	logger    logging.Logger
}

// NewServer wraps companion. The server owns it from here on and closes it
// in Close.
func NewServer(cfg Config, companion *app.Companion) (*Server, error) {
	if companion == nil {
		return nil, errors.New("companion is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:       cfg,
		companion: companion,
		router:    r,
		logger:    logger,
		upgrader: websocket.Upgrader{
			// The bridge only listens on loopback.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.routes()
	return s, nil
}

// Companion returns the underlying companion (tests, CLI).
func (s *Server) Companion() *app.Companion {
	return s.companion
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scans/{surface}", s.optionsHandler("GET, POST, DELETE"))
	r.Options("/notifications", s.optionsHandler("GET, POST"))
	r.Options("/notifications/{id}", s.optionsHandler("DELETE"))
	r.Options("/settings", s.optionsHandler("GET, PATCH"))
	r.Options("/settings/shield/toggle", s.optionsHandler("POST"))
	r.Options("/profile", s.optionsHandler("GET, PUT"))
	r.Options("/secrets", s.optionsHandler("POST"))
	r.Options("/feed", s.optionsHandler("GET, POST"))

	r.Get("/health", s.handleHealth)

	// Scans
	r.Post("/scans/{surface}", s.handleSubmitScan)
	r.Get("/scans/{surface}", s.handleGetScan)
	r.Delete("/scans/{surface}", s.handleResetScan)

	// Notifications
	r.Get("/notifications", s.handleListNotifications)
	r.Post("/notifications", s.handlePushNotification)
	r.Delete("/notifications/{id}", s.handleDismissNotification)

	// Settings & profile
	r.Get("/settings", s.handleGetSettings)
	r.Patch("/settings", s.handleUpdateSettings)
	r.Post("/settings/shield/toggle", s.handleToggleShield)
	r.Get("/profile", s.handleGetProfile)
	r.Put("/profile", s.handleUpdateProfile)

	// Tools
	r.Post("/secrets", s.handleGenerateSecret)
	r.Get("/tips", s.handleSafetyTips)
	r.Get("/apps", s.handleListApps)

	// Community
	r.Get("/feed", s.handleListComments)
	r.Post("/feed", s.handlePostComment)

	// WebSockets
	r.Get("/ws/notifications", s.handleNotificationsWS)
	r.Get("/ws/scans/{surface}", s.handleScanWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.logger.Warn("request body too large", append(fields, logging.Field{Key: "limit", Value: tooLarge.Limit})...)
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "reading request body failed")
			return
		}
		logged := bodyBytes
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		fields = append(fields, logging.Field{Key: "body", Value: string(logged)})
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the companion.
func (s *Server) Close() {
	if s.companion != nil {
		if err := s.companion.Close(); err != nil {
			s.logger.Warn("closing companion", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps err onto a status code and an ErrorResponse carrying
// its error kind.
func writeFailure(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var blocked *feed.BlockedError
	switch {
	case errors.As(err, &blocked):
		resp.Reason = blocked.Reason
	case errors.Is(err, app.ErrUnknownSurface), errors.Is(err, app.ErrClosed), errors.Is(err, session.ErrClosed):
	default:
		resp.Kind = string(analyzer.KindOf(err))
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnknownSurface):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrClosed), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch analyzer.KindOf(err) {
	case analyzer.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Version: app.Version,
		Shield:  s.companion.Settings().RealtimeShield,
		Time:    s.companion.Clock().Now().UTC(),
	}
	status, err := s.companion.Health(ctx)
	if err != nil {
		resp.Status = "degraded"
		resp.Analyzer = err.Error()
		s.logger.Warn("analyzer health", logging.Field{Key: "error", Value: err.Error()})
	} else {
		resp.Analyzer = status
	}
	writeJSON(w, http.StatusOK, resp)
}

// Scans

func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	surface := chi.URLParam(r, "surface")
	if _, err := s.companion.Session(surface); err != nil {
		writeFailure(w, err)
		return
	}

	resp := ScanAcceptedResponse{Surface: surface}
	var err error
	switch surface {
	case app.SurfaceLink:
		var body ScanLinkRequest
		if derr := decodeBody(r, &body); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		resp.RequestID, resp.Link, err = s.companion.ScanLink(r.Context(), body.URL)
	case app.SurfaceFile:
		var body ScanFileRequest
		if derr := decodeBody(r, &body); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		resp.RequestID, err = s.companion.ScanFile(r.Context(), body.Name, body.Type, body.Content)
	case app.SurfaceImage:
		var body ScanImageRequest
		if derr := decodeBody(r, &body); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		resp.RequestID, err = s.companion.ScanImage(r.Context(), body.Data, body.MimeType)
	case app.SurfaceAppActivity:
		resp.RequestID, err = s.companion.ScanAppActivity(r.Context())
	case app.SurfaceOneClick:
		resp.RequestID, err = s.companion.OneClickCheck(r.Context())
	}
	if err != nil {
		s.logger.Warn("submitting scan", logging.Field{Key: "surface", Value: surface}, logging.Field{Key: "error", Value: err.Error()})
		writeFailure(w, err)
		return
	}
	s.logger.Info("submitted scan", logging.Field{Key: "surface", Value: surface}, logging.Field{Key: "request_id", Value: resp.RequestID})
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	sess, err := s.companion.Session(chi.URLParam(r, "surface"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleResetScan(w http.ResponseWriter, r *http.Request) {
	if err := s.companion.ResetScan(chi.URLParam(r, "surface")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notifications

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.companion.Notifications())
}

func (s *Server) handlePushNotification(w http.ResponseWriter, r *http.Request) {
	var body PushNotificationRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id, err := s.companion.Notify(body.Message)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.companion.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Settings & profile

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.companion.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	settings, err := s.companion.UpdateSettings(patch)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.logger.Info("updated settings", logging.Field{Key: "settings", Value: settings})
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleToggleShield(w http.ResponseWriter, r *http.Request) {
	settings, err := s.companion.ToggleShield()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProfileResponse{Username: s.companion.Username()})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body UpdateProfileRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.companion.SetUsername(body.Username); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Username: s.companion.Username()})
}

// Tools

func (s *Server) handleGenerateSecret(w http.ResponseWriter, r *http.Request) {
	var body SecretRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if body.Length == 0 {
		body.Length = secret.DefaultLength
	}
	body.Length = secret.ClampLength(body.Length)
	value, err := s.companion.GenerateSecret(body.Length)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SecretResponse{Secret: value, Length: len(value)})
}

func (s *Server) handleSafetyTips(w http.ResponseWriter, r *http.Request) {
	tips, err := s.companion.SafetyTips(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tips)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps := s.companion.InstalledApps()
	out := make([]AppView, len(apps))
	for i, a := range apps {
		out[i] = AppView{AppActivity: a, Band: fixtures.Band(a.RiskScore)}
	}
	writeJSON(w, http.StatusOK, out)
}

// Community

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.companion.Comments())
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	var body PostCommentRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, err := s.companion.PostComment(r.Context(), body.Text)
	if err != nil {
		s.logger.Info("comment rejected", logging.Field{Key: "error", Value: err.Error()})
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// WebSockets

func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so no change falls between the two.
	events, cancel := s.companion.Center().Subscribe()
	defer cancel()

	if err := conn.WriteJSON(NotificationSnapshot{Type: "snapshot", Entries: s.companion.Notifications()}); err != nil {
		return
	}
	pumpEvents(conn, events)
}

func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.companion.Session(chi.URLParam(r, "surface"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	states, cancel := sess.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(sess.State()); err != nil {
		return
	}
	pumpEvents(conn, states)
}

// pumpEvents writes every value from events to conn until the client goes
// away or events is closed.
func pumpEvents[T any](conn *websocket.Conn, events <-chan T) {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
