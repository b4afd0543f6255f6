package config // package config loads application configuration from environment variables

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; required ones make Load fail when unset.
type Config struct {
	Env     string `envconfig:"APP_ENV" default:"dev"`
	Port    string `envconfig:"APP_PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" required:"true"`

	// empty disables notification publishing; messages are only logged
	RabbitURL         string `envconfig:"RABBIT_URL"`
	NotifyExchange    string `envconfig:"NOTIFY_EXCHANGE" default:"court.notifications"`
	NotifyQueue       string `envconfig:"NOTIFY_QUEUE" default:"court.notifications.log"`
	NotificationsFile string `envconfig:"NOTIFICATIONS_FILE" default:"logs/notifications.log"`

	LinkSecret   string        `envconfig:"LINK_SECRET" required:"true"`
	ShortLinks   bool          `envconfig:"SHORT_LINKS" default:"true"`
	AdminKeyHash string        `envconfig:"ADMIN_KEY_HASH"`
	LockTTL      time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait     time.Duration `envconfig:"LOCK_WAIT" default:"3s"`

	OmisePublicKey string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey string `envconfig:"OMISE_SECRET_KEY"`
	Currency       string `envconfig:"PAYMENT_CURRENCY" default:"eur"`
	// price of a whole reservation in minor units; 0 disables payments
	Price int64 `envconfig:"RESERVATION_PRICE" default:"0"`

	CaptureEvery   time.Duration `envconfig:"CAPTURE_INTERVAL" default:"5m"`
	ReminderEvery  time.Duration `envconfig:"REMINDER_INTERVAL" default:"30m"`
	ReconcileEvery time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1h"`
	ReconcileDays  int           `envconfig:"RECONCILE_DAYS" default:"14"`

	TimeZone   string `envconfig:"TIME_ZONE" default:"Europe/Madrid"`
	CourtsFile string `envconfig:"COURTS_FILE" default:"config/courts.yaml"`
	// "google" or "memory"
	CalendarBackend     string `envconfig:"CALENDAR_BACKEND" default:"google"`
	CalendarCredentials string `envconfig:"CALENDAR_CREDENTIALS"`
}

// Load reads an optional .env file, then processes the environment into a
// Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.CalendarBackend != "google" && cfg.CalendarBackend != "memory" {
		return Config{}, fmt.Errorf("CALENDAR_BACKEND must be google or memory, got %q", cfg.CalendarBackend)
	}
	if cfg.CalendarBackend == "google" && cfg.CalendarCredentials == "" {
		return Config{}, fmt.Errorf("CALENDAR_CREDENTIALS is required for the google calendar backend")
	}
	if cfg.Price > 0 && (cfg.OmisePublicKey == "" || cfg.OmiseSecretKey == "") {
		return Config{}, fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY are required when RESERVATION_PRICE is set")
	}
	return cfg, nil
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// PaymentsEnabled reports whether shares are apportioned and charged.
func (c Config) PaymentsEnabled() bool { return c.Price > 0 }
