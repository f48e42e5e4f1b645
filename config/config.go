package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool

	AdminUser     string
	AdminPassword string

	Store       string
	StorePath   string
	PostgresDSN string

	UploadsDir    string
	MaxUploadSize int64
	RequireResume bool
	RequireOTP    bool

	RolesFile string

	Scorer        string
	LLMProvider   string
	LLMAPIKey     string
	LLMModel      string
	LLMBaseURL    string
	LLMTimeout    time.Duration
	LLMCacheTTL   time.Duration
	FallbackScore int
	GCPProject    string
	GCPLocation   string

	RedisURL string

	OTPTTL         time.Duration
	OTPVerifiedTTL time.Duration
	OTPPerMinute   int
	LoginPerMinute int

	PassScore int

	EmailProvider string
	EmailFrom     string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	SMSProvider   string
	AWSRegion     string
}

var (
	stores         = []string{"sqlite", "postgres", "csv", "xlsx", "memory"}
	scorers        = []string{"heuristic", "llm"}
	llmProviders   = []string{"openai", "groq", "vertex"}
	emailProviders = []string{"none", "ses", "smtp"}
	smsProviders   = []string{"none", "sns"}
)

func ParseFlags() (Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse reads cfg from args. Secrets and connection strings default to
// their environment variables so they stay out of the process list.
func Parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var host string
	fs.StringVar(&host, "host", "0.0.0.0", "listen host name")
	var port uint
	fs.UintVar(&port, "port", uint(intOr("PORT", 8080)), "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", "qapply.sqlite", "path to SQLite3 control DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", os.Getenv("TOKEN_SECRET"), "secret key for token encryption and decryption (env TOKEN_SECRET)")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", 900, "access token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")

	fs.StringVar(&cfg.AdminUser, "admin-user", "admin", "admin user name")
	fs.StringVar(&cfg.AdminPassword, "admin-password", os.Getenv("ADMIN_PASS"), "admin password, hashed on startup (env ADMIN_PASS)")

	fs.StringVar(&cfg.Store, "store", "sqlite", "application store: "+strings.Join(stores, ", "))
	fs.StringVar(&cfg.StorePath, "store-path", "", "file path for csv/xlsx stores (default data/applications.<ext>)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (env DATABASE_URL)")

	fs.StringVar(&cfg.UploadsDir, "uploads-dir", "uploads", "directory for uploaded resumes")
	var maxUploadMB uint
	fs.UintVar(&maxUploadMB, "max-upload-mb", 10, "maximum resume size in MiB")
	fs.BoolVar(&cfg.RequireResume, "require-resume", false, "reject submissions without a resume")
	fs.BoolVar(&cfg.RequireOTP, "require-otp", false, "require a verified email OTP before submitting")

	fs.StringVar(&cfg.RolesFile, "roles", "", "role catalog file (json, yaml or toml); built-in catalog when empty")

	fs.StringVar(&cfg.Scorer, "scorer", "heuristic", "scorer: "+strings.Join(scorers, ", "))
	fs.StringVar(&cfg.LLMProvider, "llm-provider", "openai", "LLM provider: "+strings.Join(llmProviders, ", "))
	fs.StringVar(&cfg.LLMAPIKey, "llm-api-key", firstEnv("LLM_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY"), "LLM API key (env LLM_API_KEY)")
	fs.StringVar(&cfg.LLMModel, "llm-model", "", "LLM model name (provider default when empty)")
	fs.StringVar(&cfg.LLMBaseURL, "llm-base-url", "", "override for OpenAI-compatible base URL")
	fs.DurationVar(&cfg.LLMTimeout, "llm-timeout", 20*time.Second, "per-call LLM timeout")
	fs.DurationVar(&cfg.LLMCacheTTL, "llm-cache-ttl", 24*time.Hour, "cache TTL for identical scoring prompts (0 disables)")
	fs.IntVar(&cfg.FallbackScore, "fallback-score", 50, "score used when the LLM scorer cannot answer")
	fs.StringVar(&cfg.GCPProject, "gcp-project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "Google Cloud project for the vertex provider")
	fs.StringVar(&cfg.GCPLocation, "gcp-location", envOr("GOOGLE_CLOUD_LOCATION", "us-central1"), "Google Cloud location for the vertex provider")

	fs.StringVar(&cfg.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL for OTP codes, rate limits and LLM cache (env REDIS_URL)")

	fs.DurationVar(&cfg.OTPTTL, "otp-ttl", 5*time.Minute, "OTP code lifetime")
	fs.DurationVar(&cfg.OTPVerifiedTTL, "otp-verified-ttl", 30*time.Minute, "how long a verified OTP stays usable for a submission")
	fs.IntVar(&cfg.OTPPerMinute, "otp-per-minute", 3, "OTP requests allowed per destination per minute")
	fs.IntVar(&cfg.LoginPerMinute, "login-per-minute", 10, "admin login attempts allowed per client per minute")

	fs.IntVar(&cfg.PassScore, "pass-score", 60, "score at or above which analytics count a pass")

	fs.StringVar(&cfg.EmailProvider, "email-provider", "none", "email provider: "+strings.Join(emailProviders, ", "))
	fs.StringVar(&cfg.EmailFrom, "email-from", "", "sender address for outgoing email")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP server host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", 587, "SMTP server port")
	fs.StringVar(&cfg.SMTPUser, "smtp-user", "", "SMTP user name")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password (env SMTP_PASSWORD)")
	fs.StringVar(&cfg.SMSProvider, "sms-provider", "none", "SMS provider: "+strings.Join(smsProviders, ", "))
	fs.StringVar(&cfg.AWSRegion, "aws-region", envOr("AWS_REGION", "us-east-1"), "AWS region for SES and SNS")

	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.MaxUploadSize = int64(maxUploadMB) << 20
	if cfg.StorePath == "" {
		switch cfg.Store {
		case "csv":
			cfg.StorePath = "data/applications.csv"
		case "xlsx":
			cfg.StorePath = "data/applications.xlsx"
		}
	}

	err = cfg.Validate()
	return
}

func (cfg Config) Validate() error {
	var errs *multierror.Error

	if cfg.TokenSecret == "" {
		errs = multierror.Append(errs, errors.New("missing parameter -token-secret"))
	}
	if !oneOf(cfg.Store, stores) {
		errs = multierror.Append(errs, fmt.Errorf("invalid -store %q", cfg.Store))
	}
	if cfg.Store == "postgres" && cfg.PostgresDSN == "" {
		errs = multierror.Append(errs, errors.New("-store postgres needs -postgres-dsn"))
	}
	if !oneOf(cfg.Scorer, scorers) {
		errs = multierror.Append(errs, fmt.Errorf("invalid -scorer %q", cfg.Scorer))
	}
	if !oneOf(cfg.LLMProvider, llmProviders) {
		errs = multierror.Append(errs, fmt.Errorf("invalid -llm-provider %q", cfg.LLMProvider))
	}
	if cfg.FallbackScore < 0 || cfg.FallbackScore > 100 {
		errs = multierror.Append(errs, errors.New("-fallback-score must be between 0 and 100"))
	}
	if cfg.PassScore < 0 || cfg.PassScore > 100 {
		errs = multierror.Append(errs, errors.New("-pass-score must be between 0 and 100"))
	}
	if cfg.MaxUploadSize <= 0 {
		errs = multierror.Append(errs, errors.New("-max-upload-mb must be positive"))
	}
	if cfg.OTPTTL <= 0 || cfg.OTPVerifiedTTL <= 0 {
		errs = multierror.Append(errs, errors.New("OTP lifetimes must be positive"))
	}
	if cfg.OTPPerMinute <= 0 || cfg.LoginPerMinute <= 0 {
		errs = multierror.Append(errs, errors.New("rate limits must be positive"))
	}
	if !oneOf(cfg.EmailProvider, emailProviders) {
		errs = multierror.Append(errs, fmt.Errorf("invalid -email-provider %q", cfg.EmailProvider))
	}
	if cfg.EmailProvider != "none" && cfg.EmailFrom == "" {
		errs = multierror.Append(errs, errors.New("-email-from is required when email is enabled"))
	}
	if cfg.EmailProvider == "smtp" && cfg.SMTPHost == "" {
		errs = multierror.Append(errs, errors.New("-email-provider smtp needs -smtp-host"))
	}
	if !oneOf(cfg.SMSProvider, smsProviders) {
		errs = multierror.Append(errs, fmt.Errorf("invalid -sms-provider %q", cfg.SMSProvider))
	}
	if cfg.RequireOTP && cfg.EmailProvider == "none" {
		errs = multierror.Append(errs, errors.New("-require-otp needs an email provider"))
	}

	return errs.ErrorOrNil()
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
