package notify

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// Message is an outbound email
type Message struct {
	FromName string
	From     string
	ToName   string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// Mailer delivers email messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer sends messages over SMTP
type SMTPMailer struct {
	config SMTPConfig
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{config: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	email, err := BuildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTimeout(m.config.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}

	client, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver email").
			WithMetadata(map[string]any{
				"to":      msg.To,
				"subject": msg.Subject,
			})
	}

	return nil
}

// BuildMessage converts a Message into a go-mail message
func BuildMessage(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()

	if err := email.FromFormat(msg.FromName, msg.From); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sender address")
	}

	if err := email.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid recipient address")
	}

	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		email.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	return email, nil
}

// LogMailer writes messages to the logger instead of delivering them
type LogMailer struct {
	logger accounts.Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(logger accounts.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logger == nil {
		return nil
	}
	m.logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	m.logger.Info("email", "to", msg.To, "subject", msg.Subject)
	m.logger.Debug(msg.Text)
	return nil
}
