package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/model"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Unconfigured stands in for a channel with no provider.
type Unconfigured string

func (u Unconfigured) SendEmail(context.Context, string, string, string) error {
	return integration.Unconfigured(string(u))
}

func (u Unconfigured) SendSMS(context.Context, string, string) error {
	return integration.Unconfigured(string(u))
}

// New builds the email and SMS senders selected in cfg.
func New(ctx context.Context, cfg config.Config) (EmailSender, SMSSender, error) {
	var email EmailSender = Unconfigured("email")
	var sms SMSSender = Unconfigured("sms")

	if cfg.EmailProvider == "smtp" {
		email = NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	}

	if cfg.EmailProvider == "ses" || cfg.SMSProvider == "sns" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		if cfg.EmailProvider == "ses" {
			email = NewSES(ses.NewFromConfig(awsCfg), cfg.EmailFrom)
		}
		if cfg.SMSProvider == "sns" {
			sms = NewSNS(sns.NewFromConfig(awsCfg))
		}
	}

	return email, sms, nil
}

// Confirmation renders the message sent after a stored application.
func Confirmation(a model.Application) (subject, body string) {
	subject = fmt.Sprintf("Your application for %s", a.JobRole)
	body = fmt.Sprintf(`Hello %s,

Thank you for applying for the %s position. Your application #%d has been received.

Result: %s
Score: %d/100

We will contact you at this address or at %s if you are shortlisted.
`, a.Name, a.JobRole, a.ID, a.Result, a.Score, a.Phone)
	return
}

func OTPMessage(code string, ttlMinutes int) (subject, body string) {
	subject = "Your verification code"
	body = fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, ttlMinutes)
	return
}
