package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	return &sns.PublishOutput{}, m.err
}

func TestSES_SendEmail(t *testing.T) {
	m := &mockSES{}
	err := NewSES(m, "jobs@example.com").SendEmail(context.Background(), "asha@example.com", "Hi", "Body")
	require.NoError(t, err)

	assert.Equal(t, "jobs@example.com", *m.input.Source)
	assert.Equal(t, []string{"asha@example.com"}, m.input.Destination.ToAddresses)
	assert.Equal(t, "Hi", *m.input.Message.Subject.Data)
	assert.Equal(t, "Body", *m.input.Message.Body.Text.Data)
}

func TestSES_Throttled(t *testing.T) {
	m := &mockSES{err: &smithy.GenericAPIError{Code: "Throttling", Message: "Maximum sending rate exceeded."}}
	err := NewSES(m, "jobs@example.com").SendEmail(context.Background(), "a@b.co", "s", "b")
	assert.Equal(t, integration.KindRateLimited, integration.KindOf(err))
}

func TestSNS_SendSMS(t *testing.T) {
	m := &mockSNS{}
	err := NewSNS(m).SendSMS(context.Background(), "+919876543210", "code 123456")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", *m.input.PhoneNumber)
	assert.Equal(t, "code 123456", *m.input.Message)
}

func TestSMTP_SendEmail(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: 2525, Username: "u", Password: "p", From: "jobs@example.com"})

	var gotAddr string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		assert.NotNil(t, a)
		assert.Equal(t, []string{"asha@example.com"}, to)
		return nil
	}

	require.NoError(t, s.SendEmail(context.Background(), "asha@example.com", "Subject\nInjected: x", "line1\nline2"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Subject Injected: x\r\n")
	assert.Contains(t, string(gotMsg), "line1\r\nline2")
}

func TestSMTP_ContextDeadline(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: 25})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		time.Sleep(time.Second)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.SendEmail(ctx, "a@b.co", "s", "b")
	assert.Equal(t, integration.KindTimeout, integration.KindOf(err))
}

func TestSMTP_Failure(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: 25})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := s.SendEmail(context.Background(), "a@b.co", "s", "b")
	assert.Equal(t, integration.KindUnavailable, integration.KindOf(err))
}

func TestUnconfigured(t *testing.T) {
	err := Unconfigured("email").SendEmail(context.Background(), "a@b.co", "s", "b")
	assert.Equal(t, integration.KindUnconfigured, integration.KindOf(err))
}

func TestConfirmation(t *testing.T) {
	subject, body := Confirmation(model.Application{ID: 9, Name: "Asha", JobRole: "HR", Result: model.ResultQualified, Score: 72})
	assert.Equal(t, "Your application for HR", subject)
	assert.Contains(t, body, "#9")
	assert.Contains(t, body, "Result: Qualified")
	assert.Contains(t, body, "Score: 72/100")
}
