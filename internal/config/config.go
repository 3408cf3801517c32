package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	TelegramBotToken string
	WebhookSecret    string
	AllowedChatIDs   []int64
	OwnerChatID      int64

	SheetsBridgeURL   string
	SheetsBridgeToken string

	DriveBridgeURL   string
	DriveBridgeToken string

	VisionAPIKey string

	OpsJWTSecret    string
	OpsPasswordHash string

	CORSAllowedOrigins []string

	DispatchInterval  time.Duration
	ReconcileInterval time.Duration
	SessionTimeout    time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: mustGetenv("DATABASE_URL"),

		TelegramBotToken: mustGetenv("TELEGRAM_BOT_TOKEN"),
		WebhookSecret:    mustGetenv("WEBHOOK_SECRET"),
		OwnerChatID:      getenvInt64("TELEGRAM_OWNER_CHAT_ID", 0),

		SheetsBridgeURL:   getenv("SHEETS_BRIDGE_URL", ""),
		SheetsBridgeToken: getenv("SHEETS_BRIDGE_TOKEN", ""),

		DriveBridgeURL:   getenv("DRIVE_BRIDGE_URL", ""),
		DriveBridgeToken: getenv("DRIVE_BRIDGE_TOKEN", ""),

		VisionAPIKey: getenv("GOOGLE_VISION_API_KEY", ""),

		OpsJWTSecret:    mustGetenv("OPS_JWT_SECRET"),
		OpsPasswordHash: getenv("OPS_PASSWORD_HASH", ""),

		DispatchInterval:  getenvSeconds("DISPATCH_INTERVAL_SECONDS", 15*time.Second),
		ReconcileInterval: getenvSeconds("RECONCILE_INTERVAL_SECONDS", 3600*time.Second),
		SessionTimeout:    getenvSeconds("SESSION_TIMEOUT_SECONDS", 7200*time.Second),
	}

	for _, raw := range strings.Split(getenv("TELEGRAM_ALLOWED_CHAT_IDS", ""), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			panic("bad TELEGRAM_ALLOWED_CHAT_IDS entry: " + raw)
		}
		cfg.AllowedChatIDs = append(cfg.AllowedChatIDs, id)
	}
	if cfg.OwnerChatID != 0 {
		cfg.AllowedChatIDs = append(cfg.AllowedChatIDs, cfg.OwnerChatID)
	}

	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic("bad env " + key + ": " + v)
	}
	return n
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		panic("bad env " + key + ": " + v)
	}
	return time.Duration(n) * time.Second
}
