package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

const (
	SubjectVerify  = "Verify your email address"
	SubjectWelcome = "Welcome To %s"
)

// SMSSender sends verification codes by text message
type SMSSender interface {
	SendVerificationCode(ctx context.Context, to, code string) (*accounts.SMSResult, error)
}

// DispatcherConfig holds the sender identity and public URLs
type DispatcherConfig struct {
	FromAddress string
	FromName    string
	AppName     string
	BaseURL     string
}

// Dispatcher implements accounts.NotificationDispatcher on top of a Mailer,
// an SMSSender and the mail templates
type Dispatcher struct {
	config    DispatcherConfig
	mailer    Mailer
	sms       SMSSender
	templates *Templates
	logger    accounts.Logger
}

var _ accounts.NotificationDispatcher = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig, mailer Mailer, sms SMSSender, templates *Templates) *Dispatcher {
	if cfg.FromName == "" {
		cfg.FromName = cfg.AppName
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Dispatcher{
		config:    cfg,
		mailer:    mailer,
		sms:       sms,
		templates: templates,
	}
}

func (d *Dispatcher) WithLogger(logger accounts.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// VerifyURL is the link that confirms an email address
func (d *Dispatcher) VerifyURL(code string) string {
	return d.config.BaseURL + "/verify/" + accounts.ChannelEmail.String() + "/" + code
}

func (d *Dispatcher) SendVerificationEmail(ctx context.Context, account *accounts.Account, confirmationCode string) error {
	return d.sendTemplate(ctx, account, SubjectVerify, TemplateVerify, map[string]any{
		"confirmation_code": confirmationCode,
		"verify_url":        d.VerifyURL(confirmationCode),
	})
}

func (d *Dispatcher) SendWelcomeEmail(ctx context.Context, account *accounts.Account) error {
	subject := fmt.Sprintf(SubjectWelcome, d.config.AppName)
	return d.sendTemplate(ctx, account, subject, TemplateWelcome, map[string]any{
		"name":  account.Name,
		"email": account.Email,
	})
}

func (d *Dispatcher) SendVerificationSMS(ctx context.Context, account *accounts.Account, verificationCode string) (*accounts.SMSResult, error) {
	if d.sms == nil {
		return nil, goerrors.New("sms sender is not configured", goerrors.CategoryInternal)
	}
	return d.sms.SendVerificationCode(ctx, account.Phone, verificationCode)
}

func (d *Dispatcher) SendPasswordResetEmail(ctx context.Context, account *accounts.Account, link accounts.PasswordResetLink) error {
	return d.sendTemplate(ctx, account, link.Subject, TemplatePasswordReset, map[string]any{
		"name":      account.Name,
		"token":     link.Token,
		"reset_url": link.URL,
		"expires":   link.Expires.UTC().Format(time.RFC1123),
	})
}

func (d *Dispatcher) sendTemplate(ctx context.Context, account *accounts.Account, subject, name string, bindings map[string]any) error {
	if account == nil {
		return goerrors.New("account is required", goerrors.CategoryInternal)
	}

	bindings["subject"] = subject
	bindings["app_name"] = d.config.AppName

	html, err := d.templates.Render(name, bindings)
	if err != nil {
		return err
	}

	msg := Message{
		FromName: d.config.FromName,
		From:     d.config.FromAddress,
		ToName:   account.Name,
		To:       account.Email,
		Subject:  subject,
		Text:     textBody(name, bindings),
		HTML:     html,
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		if d.logger != nil {
			d.logger.Error("failed to send email", "template", name, "to", account.Email, "error", err)
		}
		return err
	}

	return nil
}

func textBody(name string, bindings map[string]any) string {
	switch name {
	case TemplateVerify:
		return "Please follow the link below to verify your email address:\n" + asString(bindings["verify_url"])
	case TemplatePasswordReset:
		return "Click here to reset your password:\n" + asString(bindings["reset_url"])
	default:
		return "Welcome " + asString(bindings["name"]) + "! Your account has been verified."
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
