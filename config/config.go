package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"phishsim/pkg/mq"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MetadataDB Database   `json:"metadata_db"`
	Tracking   Tracking   `json:"tracking"`
	Secret     Secret     `json:"secret"`
	Transport  Transport  `json:"transport"`
	Engine     Engine     `json:"engine"`
	Scheduler  Scheduler  `json:"scheduler"`
	EventSink  string     `json:"event_sink"`
	Kafka      Kafka      `json:"kafka"`
	Cors       Cors       `json:"cors"`
	Defaults   MailSender `json:"defaults"`
}

type Database struct {
	Driver      string `json:"driver"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Database    string `json:"database"`
	SSLMode     string `json:"ssl_mode"`
	AutoMigrate bool   `json:"auto_migrate"`
}

type Tracking struct {
	BaseURL          string  `json:"base_url"`
	ErrorRedirectURL string  `json:"error_redirect_url"`
	RateLimit        float64 `json:"rate_limit"`
	RateBurst        int     `json:"rate_burst"`

	// only set behind a proxy that overwrites X-Real-Ip
	TrustProxyHeaders bool `json:"trust_proxy_headers"`
}

type Secret struct {
	Key string `json:"key"`
}

type Transport struct {
	Provider      string `json:"provider"`
	BrevoAPIKey   string `json:"brevo_api_key"`
	RetryAttempts uint64 `json:"retry_attempts"`
	TimeoutSecs   int    `json:"timeout_secs"`
}

type Engine struct {
	LeaseTTLSecs int `json:"lease_ttl_secs"`
}

type Scheduler struct {
	PollIntervalSecs int `json:"poll_interval_secs"`
	BatchSize        int `json:"batch_size"`
	Concurrency      int `json:"concurrency"`
}

type Kafka struct {
	Producer mq.ProducerConfig `json:"producer"`
	Consumer mq.ConsumerConfig `json:"consumer"`
}

type Cors struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// MailSender seeds the settings row when none exists yet.
type MailSender struct {
	Port            int    `json:"port"`
	EnableSsl       bool   `json:"enable_ssl"`
	FromAddress     string `json:"from_address"`
	FromDisplayName string `json:"from_display_name"`
}

func (db *Database) ToDSN() string {
	if db.Driver == DriverPostgres {
		sslMode := db.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			db.Host, db.Username, db.Password, db.Database, db.Port, sslMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", db.Username, db.Password, db.Host, db.Port, db.Database)
}

func NewConfig() *Config {
	return &Config{
		MetadataDB: Database{
			Driver:   DriverMySQL,
			Username: "",
			Password: "",
			Host:     "127.0.0.1",
			Port:     3306,
			Database: "phishsim_db",
		},
		Tracking: Tracking{
			BaseURL:          "",
			ErrorRedirectURL: "/Error",
			RateLimit:        20,
			RateBurst:        40,
		},
		Transport: Transport{
			Provider:      TransportSMTP,
			RetryAttempts: 3,
			TimeoutSecs:   30,
		},
		Engine: Engine{
			LeaseTTLSecs: 30 * 60,
		},
		Scheduler: Scheduler{
			PollIntervalSecs: 60,
			BatchSize:        20,
			Concurrency:      4,
		},
		EventSink: EventSinkDB,
		Defaults: MailSender{
			Port:        587,
			EnableSsl:   true,
			FromAddress: "noreply@example.com",
		},
	}
}

func (c *Config) Load(ctx context.Context, path string) error {
	if path == "" {
		log.Ctx(ctx).Warn().Msgf("empty config file")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Ctx(ctx).Warn().Msgf("config file does not exist, file path: %s", path)
			return nil
		}
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			log.Ctx(ctx).Error().Msgf("config file close failed, file path: %s", path)
		}
	}(f)

	p := json.NewDecoder(f)
	if err := p.Decode(&c); err != nil {
		return err
	}

	return nil
}
