package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/oauth"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/mbolis/quick-apply/catalog"
	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/llm"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/otp"
	"github.com/mbolis/quick-apply/ratelimit"
	"github.com/mbolis/quick-apply/scoring"
	"github.com/mbolis/quick-apply/store"
	"github.com/mbolis/quick-apply/submission"
	"github.com/mbolis/quick-apply/upload"
)

// App carries everything the HTTP layer needs.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Catalog      *catalog.Catalog
	Store        store.Store
	Submissions  *submission.Service
	OTP          *otp.Service
	LoginLimiter ratelimit.Limiter
	// VerifyLimiter throttles code guesses per client across destinations.
	VerifyLimiter ratelimit.Limiter

	closers []func() error
}

// New builds the application around the control DB. Optional integrations
// that lack credentials are disabled with a warning.
func New(ctx context.Context, cfg config.Config, db *sql.DB) (app App, err error) {
	app = App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Catalog, err = catalog.Load(cfg.RolesFile)
	if err != nil {
		return
	}

	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return
	}
	if rdb != nil {
		app.closers = append(app.closers, rdb.Close)
	}

	app.Store, err = store.Open(cfg, db)
	if err != nil {
		return
	}
	app.closers = append(app.closers, app.Store.Close)

	uploads, err := upload.New(cfg.UploadsDir, cfg.MaxUploadSize)
	if err != nil {
		return
	}

	email, sms, err := notifiers(ctx, cfg)
	if err != nil {
		return
	}

	scorer, err := newScorer(ctx, cfg, rdb, &app)
	if err != nil {
		return
	}

	var otpStore otp.Store = otp.NewMemoryStore()
	if rdb != nil {
		otpStore = otp.NewRedisStore(rdb)
	}
	app.OTP = otp.NewService(
		otpStore,
		email,
		sms,
		ratelimit.New(rdb, cfg.OTPPerMinute, time.Minute, "qapply:rl:otp"),
		otp.Options{TTL: cfg.OTPTTL, VerifiedTTL: cfg.OTPVerifiedTTL},
	)
	app.LoginLimiter = ratelimit.New(rdb, cfg.LoginPerMinute, time.Minute, "qapply:rl:login")
	app.VerifyLimiter = ratelimit.New(rdb, cfg.OTPPerMinute*otp.MaxAttempts, time.Minute, "qapply:rl:otp-verify")

	opts := submission.Options{RequireResume: cfg.RequireResume}
	if cfg.RequireOTP {
		opts.Verifier = app.OTP
	}
	app.Submissions = submission.NewService(app.Catalog, scorer, app.Store, uploads, email, opts)
	app.closers = append(app.closers, func() error {
		app.Submissions.Close()
		return nil
	})

	log.WithFields(log.Fields{
		"store":  cfg.Store,
		"scorer": cfg.Scorer,
		"roles":  len(app.Catalog.Roles),
		"redis":  rdb != nil,
	}).Info("app.ready")
	return
}

// Close releases everything New opened, in reverse order.
func (app App) Close() error {
	var errs *multierror.Error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		log.Warn("app.redis: REDIS_URL not set, OTP codes, rate limits and LLM cache stay in process")
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func notifiers(ctx context.Context, cfg config.Config) (email notify.EmailSender, sms notify.SMSSender, err error) {
	email, sms, err = notify.New(ctx, cfg)
	if err != nil {
		return
	}
	if cfg.EmailProvider == "none" {
		log.Warn("app.email: no email provider, confirmations and email codes are disabled")
	}
	if cfg.SMSProvider == "none" {
		log.Warn("app.sms: no SMS provider, SMS codes are disabled")
	}
	return
}

func newScorer(ctx context.Context, cfg config.Config, rdb *redis.Client, app *App) (scoring.Scorer, error) {
	if cfg.Scorer == "heuristic" {
		return scoring.Heuristic{}, nil
	}

	completer, err := llm.New(ctx, cfg)
	var ie *integration.Error
	switch {
	case errors.As(err, &ie) && ie.Kind == integration.KindUnconfigured:
		log.WithFields(log.Fields{"service": ie.Service}).Warn("app.llm: no credentials, every application gets the fallback score")
		completer = nil
	case err != nil:
		return nil, fmt.Errorf("llm: %w", err)
	default:
		app.closers = append(app.closers, completer.Close)
	}

	var cache scoring.Cache = scoring.NewMemoryCache()
	if rdb != nil {
		cache = scoring.NewRedisCache(rdb)
	}
	return scoring.NewLLM(completer, scoring.LLMOptions{
		Fallback: cfg.FallbackScore,
		Timeout:  cfg.LLMTimeout,
		Cache:    cache,
		CacheTTL: cfg.LLMCacheTTL,
	}), nil
}
