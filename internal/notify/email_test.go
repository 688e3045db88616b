package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

var reminder = EmailMessage{
	To:      "awa@example.sn",
	ToName:  "Diop Awa",
	Subject: "Rappel de rendez-vous",
	Body:    "Bonjour Diop",
	HTML:    "<p>Bonjour Diop</p>",
}

func quietLogger() *logging.Logger { return logging.New("error") }

func TestNewSendGridSenderNilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "noreply@consultation.sn"}, nil))
}

func TestNewSendGridSenderDefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "noreply@consultation.sn"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, DefaultFromName, sender.fromName)
}

type fakeSendGrid struct {
	status int
	err    error
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSenderSend(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: fake, fromEmail: "noreply@consultation.sn", fromName: "Cabinet", logger: quietLogger()}

	require.NoError(t, sender.Send(context.Background(), reminder))
	require.NotNil(t, fake.got)
	assert.Equal(t, "Rappel de rendez-vous", fake.got.Subject)
	assert.Equal(t, "noreply@consultation.sn", fake.got.From.Address)
}

func TestSendGridSenderErrors(t *testing.T) {
	sender := &SendGridSender{client: &fakeSendGrid{status: 500}, logger: quietLogger()}
	assert.Error(t, sender.Send(context.Background(), reminder))

	sender = &SendGridSender{client: &fakeSendGrid{err: errors.New("timeout")}, logger: quietLogger()}
	assert.Error(t, sender.Send(context.Background(), reminder))

	sender = &SendGridSender{}
	assert.Error(t, sender.Send(context.Background(), reminder))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	fake := &fakeSES{}
	sender := newSESSender(fake, SESConfig{FromEmail: "noreply@consultation.sn", FromName: "Cabinet"}, quietLogger())

	require.NoError(t, sender.Send(context.Background(), reminder))
	require.NotNil(t, fake.input)
	assert.Equal(t, "Cabinet <noreply@consultation.sn>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"awa@example.sn"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Bonjour Diop", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>Bonjour Diop</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))
}

func TestSESSenderWrapsFailure(t *testing.T) {
	cause := errors.New("throttled")
	sender := newSESSender(&fakeSES{err: cause}, SESConfig{FromEmail: "noreply@consultation.sn"}, quietLogger())
	err := sender.Send(context.Background(), reminder)
	assert.ErrorIs(t, err, cause)
}

func TestNewSESSenderNilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPSenderSend(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSender(d, SMTPConfig{FromEmail: "noreply@consultation.sn"}, quietLogger())

	require.NoError(t, sender.Send(context.Background(), reminder))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"Rappel de rendez-vous"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{`"Diop Awa" <awa@example.sn>`}, d.sent[0].GetHeader("To"))
}

func TestSMTPSenderRejectsMissingRecipient(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSender(d, SMTPConfig{}, quietLogger())

	err := sender.Send(context.Background(), EmailMessage{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, d.sent)
}

func TestSMTPSenderCancelledContext(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSender(d, SMTPConfig{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sender.Send(ctx, reminder), context.Canceled)
	assert.Empty(t, d.sent)
}

func TestNewSMTPSenderRequiresHost(t *testing.T) {
	assert.Nil(t, NewSMTPSender(SMTPConfig{}, nil))
	assert.NotNil(t, NewSMTPSender(SMTPConfig{Host: "smtp.example.sn"}, nil))
}

func TestStubEmailSender(t *testing.T) {
	sender := NewStubEmailSender(quietLogger())
	assert.NoError(t, sender.Send(context.Background(), reminder))
	assert.ErrorIs(t, sender.Send(context.Background(), EmailMessage{}), ErrNoRecipient)
}

func TestNewEmailSender(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{"smtp", Config{Provider: "SMTP", SMTP: SMTPConfig{Host: "smtp.example.sn"}}, &SMTPSender{}},
		{"smtp without host", Config{Provider: "smtp"}, &StubEmailSender{}},
		{"sendgrid", Config{Provider: "sendgrid", SendGridAPIKey: "key"}, &SendGridSender{}},
		{"ses without aws config", Config{Provider: "ses"}, &StubEmailSender{}},
		{"empty", Config{}, &StubEmailSender{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewEmailSender(tt.cfg, nil, quietLogger())
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}

	sender, err := NewEmailSender(Config{Provider: "ses"}, &aws.Config{Region: "eu-west-3"}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &SESSender{}, sender)

	_, err = NewEmailSender(Config{Provider: "pigeon"}, nil, quietLogger())
	assert.Error(t, err)
}
