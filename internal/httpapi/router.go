// Package httpapi exposes the SignBridge HTTP surface: the realtime
// recognition WebSocket, caregiver push-token management, and session
// history lookup.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signbridge/backend/internal/audio"
	"github.com/signbridge/backend/internal/eventlog"
	"github.com/signbridge/backend/internal/gesture"
	"github.com/signbridge/backend/internal/landmark"
	"github.com/signbridge/backend/internal/metrics"
	"github.com/signbridge/backend/internal/notifications"
	"github.com/signbridge/backend/internal/speech"
	"github.com/signbridge/backend/internal/store"
	"github.com/signbridge/backend/internal/worker"
)

type RouterConfig struct {
	PublicBaseURL string

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// EnrollKey is the shared secret a device exchanges for a JWT.
	// Empty disables token issuance (and thereby the protected API).
	EnrollKey string

	// AlertKeywords are committed tokens that trigger caregiver alerts.
	AlertKeywords []string

	// InferenceTimeout bounds a single landmark detection call.
	InferenceTimeout time.Duration

	// Notifications
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPath    string
	APNsKeyID      string
	APNsTeamID     string
	APNsBundleID   string
	APNsProduction bool
}

// Deps are the shared recognition components every connection draws on.
// Detector, SpeechEngine and Normalizer are safe for concurrent use; the
// per-connection mutable state lives in signSession.
type Deps struct {
	Detector     landmark.Detector
	SpeechEngine speech.Engine
	Normalizer   *audio.Normalizer
	Pool         *worker.Pool
	Metrics      *metrics.Metrics

	// Classifier defaults to the built-in heuristic when nil.
	Classifier gesture.Classifier
}

type Router struct {
	cfg         RouterConfig
	logger      *log.Logger
	store       *store.Store
	eventLog    *eventlog.Logger
	deps        Deps
	discord     *notifications.Discord
	apns        *notifications.APNsClient
	alertTokens map[gesture.Token]bool
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, deps Deps) http.Handler {
	// Initialize APNs client (may be nil if not configured)
	apnsClient, err := notifications.NewAPNsClient(notifications.APNsConfig{
		KeyPath:    cfg.APNsKeyPath,
		KeyID:      cfg.APNsKeyID,
		TeamID:     cfg.APNsTeamID,
		BundleID:   cfg.APNsBundleID,
		Production: cfg.APNsProduction,
	}, logger)
	if err != nil {
		logger.Printf("Warning: APNs client initialization failed: %v", err)
	}

	if deps.Classifier == nil {
		deps.Classifier = gesture.HeuristicClassifier
	}

	alertTokens := make(map[gesture.Token]bool, len(cfg.AlertKeywords))
	for _, kw := range cfg.AlertKeywords {
		alertTokens[gesture.Token(strings.ToUpper(strings.TrimSpace(kw)))] = true
	}

	r := &Router{
		cfg:         cfg,
		logger:      logger,
		store:       s,
		eventLog:    eventLog,
		deps:        deps,
		discord:     notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		apns:        apnsClient,
		alertTokens: alertTokens,
		mux:         http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Public endpoints
	r.mux.HandleFunc("GET /{$}", r.handleInfo)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Realtime recognition (no auth - the stream carries no identity)
	r.mux.HandleFunc("GET /ws", r.handleSignWS)

	// Device enrollment
	r.mux.HandleFunc("POST /auth/token", r.handleAuthToken)

	// Caregiver push tokens (protected)
	r.mux.HandleFunc("POST /api/push/register", r.withAuth(r.handlePushRegister))
	r.mux.HandleFunc("POST /api/push/unregister", r.withAuth(r.handlePushUnregister))

	// Session history (protected)
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withAuth(r.handleGetSession))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleInfo reports the fixed keyword set and where to connect.
func (r *Router) handleInfo(w http.ResponseWriter, _ *http.Request) {
	keywords := make([]string, 0, len(gesture.Keywords))
	for _, k := range gesture.Keywords {
		keywords = append(keywords, string(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "SignBridge backend",
		"keywords":  keywords,
		"websocket": wsURLFromPublicBase(r.cfg.PublicBaseURL) + "/ws",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func nowUTC() time.Time { return time.Now().UTC() }

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
