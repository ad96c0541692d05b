package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// Business packages receive the slices they need at construction; nothing reads
// raw environment variables after Load.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Queue     QueueConfig
	Dialer    DialerConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// AuthConfig configures verification of operator tokens on the manual dispatch route.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	APIBaseURL string

	// PhoneNumber is the outbound caller id. It may be empty: the dispatcher
	// detects that at dispatch time and skips the call instead of failing startup.
	PhoneNumber    string
	TransferNumber string

	// WebhookBaseURL is the public base URL Twilio calls back on.
	WebhookBaseURL    string
	ValidateSignature bool
	CallTimeout       time.Duration
}

type QueueConfig struct {
	// Connection is one of sync, redis, memory.
	Connection string
	// Async is the connection used when Connection is sync.
	Async string
	Name  string
}

type DialerConfig struct {
	CodeMaxAttempts int
	IdempotencyTTL  time.Duration
	JobTimeout      time.Duration
	// Workers is the number of goroutines draining the next-call queue.
	Workers int
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

const defaultTwilioAPIBaseURL = "https://api.twilio.com"

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.APIBaseURL = strings.TrimSpace(os.Getenv("TWILIO_API_BASE_URL"))
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.TransferNumber = strings.TrimSpace(os.Getenv("TWILIO_TRANSFER_NUMBER"))
	c.Twilio.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TWILIO_WEBHOOK_BASE_URL")), "/")
	{
		// Signature validation defaults on; only an explicit false disables it.
		b, err := optionalBool("TWILIO_VALIDATE_SIGNATURE", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Twilio.ValidateSignature = b
	}
	c.Twilio.CallTimeout = mustDuration("TWILIO_CALL_TIMEOUT")

	c.Queue.Connection = strings.TrimSpace(os.Getenv("QUEUE_CONNECTION"))
	c.Queue.Async = strings.TrimSpace(os.Getenv("QUEUE_ASYNC"))
	c.Queue.Name = strings.TrimSpace(os.Getenv("QUEUE_NAME"))

	{
		n, err := optionalInt("DIALER_CODE_MAX_ATTEMPTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Dialer.CodeMaxAttempts = n
	}
	c.Dialer.IdempotencyTTL = mustDuration("DIALER_IDEMPOTENCY_TTL")
	c.Dialer.JobTimeout = mustDuration("DIALER_JOB_TIMEOUT")
	{
		n, err := optionalInt("DIALER_WORKERS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Dialer.Workers = n
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid setting at once and fills defaults for the optional ones.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.WebhookBaseURL == "" {
		errs = append(errs, errors.New("TWILIO_WEBHOOK_BASE_URL is required"))
	}
	if c.Twilio.APIBaseURL == "" {
		c.Twilio.APIBaseURL = defaultTwilioAPIBaseURL
	}
	if c.Twilio.CallTimeout <= 0 {
		c.Twilio.CallTimeout = 10 * time.Second
	}
	if c.IsProduction() && !c.Twilio.ValidateSignature {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE cannot be disabled in production"))
	}

	if c.Queue.Connection == "" {
		c.Queue.Connection = "redis"
	}
	if c.Queue.Async == "" {
		c.Queue.Async = "redis"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "dialer:next-call"
	}
	if !isValidQueueConnection(c.Queue.Connection) {
		errs = append(errs, fmt.Errorf("QUEUE_CONNECTION must be one of sync, redis, memory, got %q", c.Queue.Connection))
	}
	if c.Queue.Async == "sync" || !isValidQueueConnection(c.Queue.Async) {
		errs = append(errs, fmt.Errorf("QUEUE_ASYNC must be one of redis, memory, got %q", c.Queue.Async))
	}

	if c.Dialer.CodeMaxAttempts <= 0 {
		c.Dialer.CodeMaxAttempts = 50
	}
	if c.Dialer.IdempotencyTTL <= 0 {
		c.Dialer.IdempotencyTTL = 24 * time.Hour
	}
	if c.Dialer.JobTimeout <= 0 {
		c.Dialer.JobTimeout = 30 * time.Second
	}
	switch {
	case c.Dialer.Workers < 0:
		errs = append(errs, fmt.Errorf("DIALER_WORKERS must be positive, got %d", c.Dialer.Workers))
	case c.Dialer.Workers == 0:
		c.Dialer.Workers = 4
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AnswerURL is the URL Twilio fetches TwiML from once the lead picks up.
func (c Config) AnswerURL() string {
	return c.Twilio.WebhookBaseURL + "/webhooks/twilio/answer"
}

// StatusCallbackURL receives call progress events, including the terminal one.
func (c Config) StatusCallbackURL() string {
	return c.Twilio.WebhookBaseURL + "/webhooks/twilio/status"
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidQueueConnection(v string) bool {
	switch v {
	case "sync", "redis", "memory":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
