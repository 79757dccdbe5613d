package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	Timezone       string `env:"TIMEZONE" envDefault:"Europe/Warsaw"`

	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	Ebay     EbayConfig
	Invoice  InvoiceConfig
	Currency CurrencyConfig
	Mail     MailConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
}

type EbayConfig struct {
	APIURL         string        `env:"EBAY_API_URL" envDefault:"https://api.ebay.com"`
	ClientID       string        `env:"EBAY_CLIENT_ID,required"`
	ClientSecret   string        `env:"EBAY_CLIENT_SECRET,required"`
	RefreshToken   string        `env:"EBAY_REFRESH_TOKEN,required"`
	Scopes         []string      `env:"EBAY_SCOPES" envDefault:"https://api.ebay.com/oauth/api_scope/sell.fulfillment"`
	OrderLookback  time.Duration `env:"EBAY_ORDER_LOOKBACK" envDefault:"72h"`
	OrdersPageSize int           `env:"EBAY_PAGE_SIZE" envDefault:"50"`
}

type InvoiceConfig struct {
	APIURL            string `env:"ING_API_URL" envDefault:"https://ksiegowosc.ing.pl"`
	APIKey            string `env:"ING_API_KEY,required"`
	IssuePlace        string `env:"INVOICE_ISSUE_PLACE" envDefault:"Warszawa"`
	Description       string `env:"INVOICE_DESCRIPTION" envDefault:"Sprzedaż wysyłkowa"`
	BuyerEmail        string `env:"INVOICE_BUYER_EMAIL" envDefault:"-"`
	PositionTypesPath string `env:"POSITION_TYPES_PATH"`
}

type CurrencyConfig struct {
	APIURL          string `env:"NBP_API_URL" envDefault:"https://api.nbp.pl"`
	MaxLookbackDays int    `env:"RATE_MAX_LOOKBACK_DAYS" envDefault:"10"`
	BaseCurrency    string `env:"BASE_CURRENCY" envDefault:"PLN"`
}

type MailConfig struct {
	Host        string `env:"SMTP_HOST"`
	Port        string `env:"SMTP_PORT" envDefault:"587"`
	User        string `env:"SMTP_USER"`
	Password    string `env:"SMTP_PASSWORD"`
	From        string `env:"MAIL_FROM"`
	To          string `env:"MAIL_TO"`
	MaxAttempts int    `env:"MAIL_MAX_ATTEMPTS" envDefault:"3"`
}

type KafkaConfig struct {
	BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	InvoicesTopic    string `env:"KAFKA_INVOICES_TOPIC" envDefault:"invoices_created"`
	GroupID          string `env:"KAFKA_GROUP_ID" envDefault:"invoice_sync_notifications"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"5m"`
}

// Load parses the process environment into a Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Mail.To == "" {
		cfg.Mail.To = cfg.Mail.From
	}
	if cfg.SyncInterval <= 0 {
		return Config{}, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}
	if cfg.Redis.Enabled() && cfg.Redis.LockTTL <= 0 {
		return Config{}, fmt.Errorf("LOCK_TTL must be positive, got %s", cfg.Redis.LockTTL)
	}
	if cfg.Currency.MaxLookbackDays <= 0 {
		return Config{}, fmt.Errorf("RATE_MAX_LOOKBACK_DAYS must be positive, got %d", cfg.Currency.MaxLookbackDays)
	}
	return cfg, nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", c.Timezone).Warn("Unknown timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

func (c KafkaConfig) Enabled() bool {
	return c.BootstrapServers != ""
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}
