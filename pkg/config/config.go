package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/telekom/notification-mailer/pkg/utils"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "./config.yaml"

// Sink types selectable via mailer.sink.
const (
	SinkSMTP   = "smtp"
	SinkKafka  = "kafka"
	SinkRedis  = "redis"
	SinkMemory = "memory"
)

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	// Debug enables gin debug mode and permissive CORS for local preview tooling.
	Debug bool `yaml:"debug"`
	// CORSOrigins are allowed in debug mode. Defaults to the local dev server.
	CORSOrigins []string        `yaml:"corsOrigins"`
	Timeouts    *ServerTimeouts `yaml:"timeouts"`
	// ShutdownTimeout bounds graceful shutdown of the ops server and the sink, e.g. "30s".
	ShutdownTimeout string `yaml:"shutdownTimeout"`
	// PreviewRatePerSecond limits /api/preview requests per client IP.
	PreviewRatePerSecond float64 `yaml:"previewRatePerSecond"`
	PreviewBurst         int     `yaml:"previewBurst"`
}

type Mailer struct {
	// BaseURL is the public URL of the web application, used for links in mails.
	BaseURL string `yaml:"baseURL"`
	// ProductName is used in subject lines, e.g. "Sentinel Password Reset".
	ProductName string `yaml:"productName"`
	// Mode is the deployment mode: production, qa or development.
	// Outside production all mail is redirected to TestAddress.
	Mode        string `yaml:"mode"`
	TestAddress string `yaml:"testAddress"`
	// AllowedOutboundAddresses are exempt from the test-address redirect.
	// Entries may be glob patterns such as "*@example.com".
	AllowedOutboundAddresses []string `yaml:"allowedOutboundAddresses"`
	// Sink selects the delivery sink: smtp, kafka, redis or memory.
	Sink string `yaml:"sink"`
}

type SMTP struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
}

type Queue struct {
	MaxRetries       int     `yaml:"maxRetries"`
	InitialBackoffMs int     `yaml:"initialBackoffMs"`
	MaxSize          int     `yaml:"maxSize"`
	RatePerSecond    float64 `yaml:"ratePerSecond"`
	Burst            int     `yaml:"burst"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	Compression string   `yaml:"compression"`
	// RequiredAcks is -1 (all), 0 (none) or 1 (leader). Unset means all.
	RequiredAcks *int `yaml:"requiredAcks"`
	Async        bool `yaml:"async"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	ListKey  string `yaml:"listKey"`
	// CounterPrefix is prepended to counter names stored in redis.
	CounterPrefix string `yaml:"counterPrefix"`
	// Counters mirrors template counters into redis in addition to prometheus.
	Counters bool `yaml:"counters"`
}

type Config struct {
	Server Server `yaml:"server"`
	Mailer Mailer `yaml:"mailer"`
	SMTP   SMTP   `yaml:"smtp"`
	Queue  Queue  `yaml:"queue"`
	Kafka  Kafka  `yaml:"kafka"`
	Redis  Redis  `yaml:"redis"`
}

// Load loads the mailer configuration from a file path.
// If configPath is empty, MAILER_CONFIG_PATH is used, then DefaultPath.
func Load(configPath ...string) (Config, error) {
	path := os.Getenv("MAILER_CONFIG_PATH")
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}
	if path == "" {
		path = DefaultPath
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open mailer config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config, nil
}

// Defaults fills unset values.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = "0.0.0.0:8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:8080"}
	}
	if c.Mailer.BaseURL == "" {
		c.Mailer.BaseURL = "http://localhost:8080"
	}
	c.Mailer.BaseURL = strings.TrimRight(c.Mailer.BaseURL, "/")
	if c.Mailer.ProductName == "" {
		c.Mailer.ProductName = "Sentinel"
	}
	if c.Mailer.Mode == "" {
		c.Mailer.Mode = "development"
	}
	if c.Mailer.Sink == "" {
		c.Mailer.Sink = SinkSMTP
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 25
	}
	if c.Queue.MaxSize <= 0 {
		c.Queue.MaxSize = 1000
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "mail-messages"
	}
	if c.Redis.ListKey == "" {
		c.Redis.ListKey = "mailer:queue"
	}
	if c.Redis.CounterPrefix == "" {
		c.Redis.CounterPrefix = "mailer:counter:"
	}
}

// ApplyEnv overrides values from MAILER_* environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Server.ListenAddress, "MAILER_LISTEN_ADDRESS")
	setBool(&c.Server.Debug, "MAILER_DEBUG")
	setString(&c.Server.ShutdownTimeout, "MAILER_SHUTDOWN_TIMEOUT")
	setString(&c.Mailer.BaseURL, "MAILER_BASE_URL")
	setString(&c.Mailer.ProductName, "MAILER_PRODUCT_NAME")
	setString(&c.Mailer.Mode, "MAILER_MODE")
	setString(&c.Mailer.TestAddress, "MAILER_TEST_ADDRESS")
	setString(&c.Mailer.Sink, "MAILER_SINK")
	if v := os.Getenv("MAILER_ALLOWED_ADDRESSES"); v != "" {
		c.Mailer.AllowedOutboundAddresses = splitList(v)
	}
	setString(&c.SMTP.Host, "MAILER_SMTP_HOST")
	setInt(&c.SMTP.Port, "MAILER_SMTP_PORT")
	setString(&c.SMTP.User, "MAILER_SMTP_USER")
	setString(&c.SMTP.Password, "MAILER_SMTP_PASSWORD")
	setString(&c.SMTP.SenderAddress, "MAILER_SMTP_SENDER_ADDRESS")
	setString(&c.SMTP.SenderName, "MAILER_SMTP_SENDER_NAME")
	if v := os.Getenv("MAILER_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.Topic, "MAILER_KAFKA_TOPIC")
	setString(&c.Redis.Addr, "MAILER_REDIS_ADDR")
	setString(&c.Redis.Password, "MAILER_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "MAILER_REDIS_DB")
	setBool(&c.Redis.Counters, "MAILER_REDIS_COUNTERS")
}

// Validate checks settings that would otherwise fail at send time.
func (c Config) Validate() error {
	var errs []error
	mode := strings.ToLower(strings.TrimSpace(c.Mailer.Mode))
	switch mode {
	case "production", "qa", "development", "":
	default:
		errs = append(errs, fmt.Errorf("unknown mailer.mode %q", c.Mailer.Mode))
	}
	if mode != "production" && c.Mailer.TestAddress == "" {
		errs = append(errs, fmt.Errorf("mailer.testAddress is required in %s mode", c.Mailer.Mode))
	}
	if bad, err := utils.ValidatePatterns(c.Mailer.AllowedOutboundAddresses); err != nil {
		errs = append(errs, fmt.Errorf("mailer.allowedOutboundAddresses: invalid pattern %q: %w", bad, err))
	}
	switch c.Mailer.Sink {
	case SinkSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host is required for the smtp sink"))
		}
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka sink"))
		}
	case SinkRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis sink"))
		}
	case SinkMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown mailer.sink %q", c.Mailer.Sink))
	}
	if c.Redis.Counters && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis.counters is enabled"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
