package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Booking     BookingConfig     `yaml:"booking"`
	Dispute     DisputeConfig     `yaml:"dispute"`
	Refund      RefundConfig      `yaml:"refund"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Provider    ProviderConfig    `yaml:"provider"`
	Worker      WorkerConfig      `yaml:"worker"`
}

type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	DisputeEventsTopic string   `yaml:"dispute_events_topic"`
	RefundEventsTopic  string   `yaml:"refund_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	// PaymentTTLMinutes bounds how long a booking may sit awaiting payment
	// before the sweep cancels it as expired.
	PaymentTTLMinutes int `yaml:"payment_ttl_minutes"`
}

func (b BookingConfig) PaymentTTL() time.Duration {
	return time.Duration(b.PaymentTTLMinutes) * time.Minute
}

type DisputeConfig struct {
	// WindowHours bounds how long after trip completion a dispute may still
	// be opened.
	WindowHours int `yaml:"window_hours"`
	// ResponseDeadlineHours is the agent's response window; past it the sweep
	// closes the dispute as expired.
	ResponseDeadlineHours int      `yaml:"response_deadline_hours"`
	MaxEvidenceCount      int      `yaml:"max_evidence_count"`
	MaxEvidenceBytes      int64    `yaml:"max_evidence_bytes"`
	AllowedEvidenceMIME   []string `yaml:"allowed_evidence_mime"`
	// SubjectivePhrases feeds the keyword complaint classifier.
	SubjectivePhrases []string `yaml:"subjective_phrases"`
}

func (d DisputeConfig) Window() time.Duration {
	return time.Duration(d.WindowHours) * time.Hour
}

func (d DisputeConfig) ResponseDeadline() time.Duration {
	return time.Duration(d.ResponseDeadlineHours) * time.Hour
}

type RefundConfig struct {
	WindowDays             int `yaml:"window_days"`
	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`
}

func (r RefundConfig) Window() time.Duration {
	return time.Duration(r.WindowDays) * 24 * time.Hour
}

func (r RefundConfig) ProviderTimeout() time.Duration {
	return time.Duration(r.ProviderTimeoutSeconds) * time.Second
}

type IdempotencyConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	// ReserveTTLSeconds bounds the in-flight reservation marker. It must be
	// far shorter than the result TTL so a crash mid-command does not block
	// retries of the key for the whole result window.
	ReserveTTLSeconds int `yaml:"reserve_ttl_seconds"`
}

func (i IdempotencyConfig) TTL() time.Duration {
	return time.Duration(i.TTLMinutes) * time.Minute
}

func (i IdempotencyConfig) ReserveTTL() time.Duration {
	return time.Duration(i.ReserveTTLSeconds) * time.Second
}

type WorkerConfig struct {
	BookingSweepMinutes int `yaml:"booking_sweep_minutes"`
	DisputeSweepMinutes int `yaml:"dispute_sweep_minutes"`
	StatsCacheSeconds   int `yaml:"stats_cache_seconds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
