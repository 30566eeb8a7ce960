package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/knadh/smtppool"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	sent   []smtppool.Email
	err    error
	closed bool
}

func (f *fakePool) Send(e smtppool.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakePool) Close() { f.closed = true }

func newFakeMailer(from string) (*SMTPMailer, *fakePool) {
	pool := &fakePool{}
	return &SMTPMailer{
		cfg:  SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587, From: from, Timeout: time.Second},
		pool: pool,
	}, pool
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, mailer)
	require.Equal(t, 10*time.Second, mailer.cfg.Timeout)
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"test@example.com"}, Subject: "Test", Body: "Hello"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerSendDelivers(t *testing.T) {
	mailer, pool := newFakeMailer("no-reply@example.com")

	err := mailer.Send(context.Background(), Message{
		To:      []string{"user@example.com", " user@example.com "},
		Subject: "Your code\r\nBcc: someone",
		Body:    "1234",
	})
	require.NoError(t, err)
	require.Len(t, pool.sent, 1)
	require.Equal(t, "no-reply@example.com", pool.sent[0].From)
	require.Equal(t, []string{"user@example.com"}, pool.sent[0].To)
	require.Equal(t, "Your code  Bcc: someone", pool.sent[0].Subject)
	require.Equal(t, []byte("1234"), pool.sent[0].Text)

	mailer.Close()
	require.True(t, pool.closed)
}

func TestSMTPMailerSendPropagatesPoolError(t *testing.T) {
	mailer, pool := newFakeMailer("no-reply@example.com")
	pool.err = errors.New("421 service unavailable")

	err := mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "421")
}

func TestSMTPMailerSendHonoursCancelledContext(t *testing.T) {
	mailer, pool := newFakeMailer("no-reply@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, mailer.Send(ctx, Message{To: []string{"user@example.com"}}), context.Canceled)
	require.Empty(t, pool.sent)
}

func TestSMTPMailerSendValidatesAddresses(t *testing.T) {
	mailer, _ := newFakeMailer("")

	err := mailer.Send(context.Background(), Message{To: []string{"   ", "\t"}})
	require.ErrorContains(t, err, "at least one recipient")

	err = mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "sender address is required")

	err = mailer.Send(context.Background(), Message{From: "invalid-from", To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "invalid from address")

	err = mailer.Send(context.Background(), Message{From: "a@example.com", To: []string{"user@example.com", "bad-address"}})
	require.ErrorContains(t, err, "invalid recipient address")
}

func TestUniqueAddresses(t *testing.T) {
	result := uniqueAddresses([]string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"})
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, result)
}
