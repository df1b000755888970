package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	SentryDSN     string
	LogLevel      string

	// Sentry performance monitoring
	SentryTracesSampleRate float64

	// Gesture inference
	DetectorCmd        string // external landmark detector command line
	InferenceTimeoutMs int

	// Speech recognition
	VoskModelPath        string
	FFmpegPath           string
	AudioDecodeTimeoutMs int

	// Inference offload
	WorkerPoolSize   int
	WorkerQueueDepth int

	// Session retention (0 days disables pruning)
	RetentionDays        int
	RetentionIntervalMin int

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
	EnrollKey string

	// Caregiver alerts
	AlertKeywords     []string
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPath    string
	APNsKeyID      string
	APNsTeamID     string
	APNsBundleID   string
	APNsProduction bool
}

func LoadConfigFromEnv() Config {
	jwtExpiry, err := time.ParseDuration(getenv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		SentryDSN:     getenv("SENTRY_DSN", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		SentryTracesSampleRate: getenvFloatClamped("SENTRY_TRACES_SAMPLE_RATE", 0.2, 0.0, 1.0),

		// Gesture inference
		DetectorCmd:        getenv("DETECTOR_CMD", ""),
		InferenceTimeoutMs: getenvIntClamped("INFERENCE_TIMEOUT_MS", 5000, 0, 60000),

		// Speech recognition
		VoskModelPath:        getenv("VOSK_MODEL_PATH", ""),
		FFmpegPath:           getenv("FFMPEG_PATH", "ffmpeg"),
		AudioDecodeTimeoutMs: getenvIntClamped("AUDIO_DECODE_TIMEOUT_MS", 15000, 0, 120000),

		// Inference offload
		WorkerPoolSize:   getenvIntClamped("WORKER_POOL_SIZE", 4, 1, 64),
		WorkerQueueDepth: getenvIntClamped("WORKER_QUEUE_DEPTH", 128, 1, 4096),

		// Session retention
		RetentionDays:        getenvIntClamped("RETENTION_DAYS", 0, 0, 3650),
		RetentionIntervalMin: getenvIntClamped("RETENTION_INTERVAL_MIN", 60, 1, 1440),

		// JWT Authentication
		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security
		JWTExpiry: jwtExpiry,
		EnrollKey: os.Getenv("ENROLL_KEY"),

		// Caregiver alerts
		AlertKeywords:     parseKeywords(getenv("ALERT_KEYWORDS", "HELP")),
		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		// APNs Push Notifications
		APNsKeyPath:    getenv("APNS_KEY_PATH", ""),
		APNsKeyID:      getenv("APNS_KEY_ID", ""),
		APNsTeamID:     getenv("APNS_TEAM_ID", ""),
		APNsBundleID:   getenv("APNS_BUNDLE_ID", ""),
		APNsProduction: getenv("APNS_PRODUCTION", "false") == "true",
	}
}

func parseKeywords(s string) []string {
	if s == "" {
		return nil
	}
	var keywords []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, strings.ToUpper(k))
		}
	}
	return keywords
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func getenvFloatClamped(k string, def, min, max float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
