package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// ERP service layer.
	ERPBaseURL       string        `env:"ERP_BASE_URL,required=true"`
	ERPLoginURL      string        `env:"ERP_LOGIN_URL,required=true"`
	ERPCompanyDB     string        `env:"ERP_COMPANY_DB,required=true"`
	ERPUser          string        `env:"ERP_USER,required=true"`
	ERPPassword      string        `env:"ERP_PASSWORD,required=true"`
	ERPTimeout       time.Duration `env:"ERP_TIMEOUT,default=30s"`
	SessionCachePath string        `env:"SESSION_CACHE_PATH,default=/var/lib/erpbridge/session.json"`

	// File transport.
	FileStoreRoot    string `env:"FILE_STORE_ROOT,required=true"`
	InboxFolder      string `env:"INBOX_FOLDER,default=inbox"`
	ProcessedFolder  string `env:"PROCESSED_FOLDER,default=processed"`
	ReportsFolder    string `env:"REPORTS_FOLDER,default=reports"`
	FileRetries      int    `env:"FILE_RETRIES,default=6"`
	DumpPayloads     bool   `env:"DUMP_PAYLOADS,default=false"`
	LookupTablesPath string `env:"LOOKUP_TABLES_PATH"`

	WebhookURL string `env:"WEBHOOK_URL"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=12"`
	ThrottleInterval  time.Duration `env:"THROTTLE_INTERVAL,default=2s"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
