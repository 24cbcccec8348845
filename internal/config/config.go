package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment.
type Config struct {
	API struct {
		Port       string `envconfig:"PORT" default:":8080"`
		BasePath   string `envconfig:"BASE_PATH" default:"/api/v1"`
		Key        string `envconfig:"KEY"`
		IngestRate string `envconfig:"INGEST_RATE" default:"120-M"`
	} `envconfig:"API"`
	DB struct {
		DSN     string `envconfig:"DSN"`
		Migrate bool   `envconfig:"MIGRATE" default:"true"`
	} `envconfig:"DB"`
	Redis struct {
		Addr     string `envconfig:"ADDR"`
		Password string `envconfig:"PASSWORD"`
		DB       int    `envconfig:"DB" default:"0"`
	} `envconfig:"REDIS"`
	Kafka struct {
		Broker  string `envconfig:"BROKER"`
		Topic   string `envconfig:"TOPIC" default:"device_samples"`
		GroupID string `envconfig:"GROUP_ID" default:"safezone-alert-service"`
	} `envconfig:"KAFKA"`
	Logging struct {
		Dir   string `envconfig:"DIR" default:"logs"`
		Level string `envconfig:"LEVEL" default:"info"`
	} `envconfig:"LOG"`
	SMS struct {
		BaseURL    string `envconfig:"BASE_URL" default:"https://api.twilio.com"`
		AccountSID string `envconfig:"ACCOUNT_SID"`
		AuthToken  string `envconfig:"AUTH_TOKEN"`
		FromNumber string `envconfig:"FROM_NUMBER"`
		DailyCap   int    `envconfig:"DAILY_CAP" default:"100"`
		// DefaultRegion resolves contact numbers written without a country code
		DefaultRegion string `envconfig:"DEFAULT_REGION" default:"VN"`
	} `envconfig:"SMS"`
	Email struct {
		SMTPServer  string `envconfig:"SMTP_SERVER"`
		SMTPPort    int    `envconfig:"SMTP_PORT" default:"587"`
		Username    string `envconfig:"USERNAME"`
		Password    string `envconfig:"PASSWORD"`
		FromName    string `envconfig:"FROM_NAME" default:"Safe Zone Alerts"`
		FromAddress string `envconfig:"FROM_ADDRESS"`
		DailyCap    int    `envconfig:"DAILY_CAP" default:"200"`
	} `envconfig:"EMAIL"`
	Push struct {
		BaseURL       string `envconfig:"BASE_URL" default:"https://exp.host"`
		AccessToken   string `envconfig:"ACCESS_TOKEN"`
		RatePerSecond int    `envconfig:"RATE_PER_SECOND" default:"10"`
	} `envconfig:"PUSH"`
	Telegram struct {
		BotToken      string `envconfig:"BOT_TOKEN"`
		RatePerSecond int    `envconfig:"RATE_PER_SECOND" default:"25"`
	} `envconfig:"TELEGRAM"`
	Notification struct {
		QueueSize      int           `envconfig:"QUEUE_SIZE" default:"500"`
		MaxWorkers     int           `envconfig:"MAX_WORKERS" default:"10"`
		SensorCooldown time.Duration `envconfig:"SENSOR_COOLDOWN" default:"30m"`
		GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	} `envconfig:"NOTIFICATION"`
	Alert struct {
		DailyLimit        int           `envconfig:"DAILY_LIMIT" default:"1"`
		DedupWindow       time.Duration `envconfig:"DEDUP_WINDOW" default:"10m"`
		UrgentDedupWindow time.Duration `envconfig:"URGENT_DEDUP_WINDOW" default:"5m"`
		DefaultTimezone   string        `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`
	} `envconfig:"ALERT"`
	Inactivity struct {
		Enabled  bool          `envconfig:"ENABLED" default:"true"`
		Schedule string        `envconfig:"SCHEDULE" default:"*/15 * * * *"`
		Window   time.Duration `envconfig:"WINDOW" default:"4h"`
		Lookback time.Duration `envconfig:"LOOKBACK" default:"24h"`
	} `envconfig:"INACTIVITY"`
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	missing := []string{}
	if c.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if c.SMS.AccountSID != "" && (c.SMS.AuthToken == "" || c.SMS.FromNumber == "") {
		missing = append(missing, "SMS_AUTH_TOKEN/SMS_FROM_NUMBER")
	}
	if c.Email.SMTPServer != "" && c.Email.Username == "" {
		missing = append(missing, "EMAIL_USERNAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}

	if _, err := time.LoadLocation(c.Alert.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid ALERT_DEFAULT_TIMEZONE %q: %w", c.Alert.DefaultTimezone, err)
	}
	if c.Notification.MaxWorkers <= 0 || c.Notification.QueueSize <= 0 {
		return fmt.Errorf("NOTIFICATION_MAX_WORKERS and NOTIFICATION_QUEUE_SIZE must be positive")
	}
	if c.Alert.DailyLimit < 0 {
		return fmt.Errorf("ALERT_DAILY_LIMIT must not be negative")
	}
	return nil
}

// Location returns the timezone used when a user has none on record.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Alert.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
