package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/ratelimit"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	CodeLength  = 6
	MaxAttempts = 5

	// codes stay readable this long past expiry so a late attempt reports
	// ErrExpired rather than ErrNotFound
	expiredGrace = time.Minute
)

var (
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrRateLimited        = errors.New("too many code requests")
	ErrNotFound           = errors.New("no pending code")
	ErrExpired            = errors.New("code expired")
	ErrInvalidCode        = errors.New("invalid code")
	ErrTooManyAttempts    = errors.New("too many attempts")
)

type Options struct {
	TTL         time.Duration
	VerifiedTTL time.Duration
}

type Service struct {
	store   Store
	email   notify.EmailSender
	sms     notify.SMSSender
	limiter ratelimit.Limiter
	opts    Options

	now      func() time.Time
	generate func() (string, error)
}

func NewService(store Store, email notify.EmailSender, sms notify.SMSSender, limiter ratelimit.Limiter, opts Options) *Service {
	return &Service{
		store:    store,
		email:    email,
		sms:      sms,
		limiter:  limiter,
		opts:     opts,
		now:      time.Now,
		generate: generateCode,
	}
}

// Normalize canonicalizes a destination so that requests, verification and
// submissions agree on the key.
func Normalize(channel, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	switch channel {
	case ChannelEmail:
		addr, err := mail.ParseAddress(destination)
		if err != nil || addr.Address != destination {
			return "", ErrInvalidDestination
		}
		return strings.ToLower(destination), nil
	case ChannelSMS:
		var b strings.Builder
		for i, r := range destination {
			switch {
			case r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == '+' && i == 0:
				b.WriteRune(r)
			case r == ' ' || r == '-' || r == '(' || r == ')':
			default:
				return "", ErrInvalidDestination
			}
		}
		digits := strings.TrimPrefix(b.String(), "+")
		if len(digits) < 7 || len(digits) > 15 {
			return "", ErrInvalidDestination
		}
		return b.String(), nil
	}
	return "", ErrInvalidChannel
}

// Request creates a code for destination and sends it over channel.
func (s *Service) Request(ctx context.Context, channel, destination string) (time.Time, error) {
	dest, err := Normalize(channel, destination)
	if err != nil {
		return time.Time{}, err
	}
	if !s.limiter.Allow(ctx, dest) {
		return time.Time{}, ErrRateLimited
	}

	code, err := s.generate()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return time.Time{}, err
	}

	e := Entry{
		ID:          id.String(),
		Code:        code,
		Channel:     channel,
		Destination: dest,
		ExpiresAt:   s.now().Add(s.opts.TTL),
	}
	if err := s.store.Put(ctx, e, s.opts.TTL+expiredGrace); err != nil {
		return time.Time{}, fmt.Errorf("store code: %w", err)
	}

	subject, body := notify.OTPMessage(code, int(s.opts.TTL.Round(time.Minute)/time.Minute))
	switch channel {
	case ChannelEmail:
		err = s.email.SendEmail(ctx, dest, subject, body)
	case ChannelSMS:
		err = s.sms.SendSMS(ctx, dest, body)
	}
	if err != nil {
		if derr := s.store.Delete(ctx, dest); derr != nil {
			log.WithError(derr).Warn("otp.request.cleanup")
		}
		return time.Time{}, err
	}

	log.WithFields(log.Fields{"otp_id": e.ID, "channel": channel}).Debug("otp.request.sent")
	return e.ExpiresAt, nil
}

// Verify checks code against the pending entry for destination. A correct
// code is consumed and replaced by a verified marker.
func (s *Service) Verify(ctx context.Context, channel, destination, code string) error {
	dest, err := Normalize(channel, destination)
	if err != nil {
		return err
	}

	e, ok, err := s.store.Get(ctx, dest)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if !s.now().Before(e.ExpiresAt) {
		if err := s.store.Delete(ctx, dest); err != nil {
			return err
		}
		return ErrExpired
	}

	// counted before comparing so parallel guesses share one budget
	n, ok, err := s.store.Attempt(ctx, dest)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if n > MaxAttempts {
		return ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(e.Code)) != 1 {
		if n == MaxAttempts {
			if err := s.store.Delete(ctx, dest); err != nil {
				return err
			}
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	if err := s.store.Delete(ctx, dest); err != nil {
		return err
	}
	return s.store.MarkVerified(ctx, dest, s.opts.VerifiedTTL)
}

// Verified reports whether email or phone holds a verified marker, leaving
// the markers in place.
func (s *Service) Verified(ctx context.Context, email, phone string) (bool, error) {
	for _, dest := range markerKeys(email, phone) {
		ok, err := s.store.HasVerified(ctx, dest)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Consume reports whether any of the destinations holds a verified marker,
// removing the markers it finds.
func (s *Service) Consume(ctx context.Context, email, phone string) (bool, error) {
	verified := false
	for _, dest := range markerKeys(email, phone) {
		ok, err := s.store.ConsumeVerified(ctx, dest)
		if err != nil {
			return false, err
		}
		verified = verified || ok
	}
	return verified, nil
}

func markerKeys(email, phone string) []string {
	var keys []string
	if dest, err := Normalize(ChannelEmail, email); err == nil {
		keys = append(keys, dest)
	}
	if dest, err := Normalize(ChannelSMS, phone); err == nil {
		keys = append(keys, dest)
	}
	return keys
}

func generateCode() (string, error) {
	max := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)
	value, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, value.Int64()), nil
}
