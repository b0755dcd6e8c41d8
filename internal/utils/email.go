package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
)

var ErrMailerUnconfigured = errors.New("smtp host not configured")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Admins receive the new-order notification.
	Admins   []string
	Currency string
	// StartTLS selects mandatory STARTTLS; otherwise TLS is opportunistic.
	StartTLS bool
}

// Mailer sends order emails over SMTP.
type Mailer struct {
	cfg SMTPConfig
	log *zap.Logger
	// deliver is swapped in tests to capture messages instead of dialing.
	deliver func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg SMTPConfig, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mailer{cfg: cfg, log: log}
	m.deliver = m.dialAndSend
	return m
}

func (m *Mailer) Configured() bool { return m.cfg.Host != "" }

// Send delivers one HTML email to every recipient in to.
func (m *Mailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("no recipient")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := m.deliver(ctx, msg); err != nil {
		return err
	}
	m.log.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	if !m.Configured() {
		return ErrMailerUnconfigured
	}

	policy := mail.TLSOpportunistic
	if m.cfg.StartTLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// --- Order notifications ---

func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if order.User.Email == "" {
		return errors.New("order has no customer email")
	}
	body, err := RenderOrderConfirmation(order, m.cfg.Currency)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order Confirmation - %s", order.OrderID)
	return m.Send(ctx, []string{order.User.Email}, subject, body)
}

func (m *Mailer) SendAdminNotification(ctx context.Context, order *models.Order) error {
	if len(m.cfg.Admins) == 0 {
		m.log.Debug("no admin recipients, skipping new-order notification", zap.String("order_id", order.OrderID))
		return nil
	}
	body, err := RenderAdminNotification(order, m.cfg.Currency)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New Order Received - %s", order.OrderID)
	return m.Send(ctx, m.cfg.Admins, subject, body)
}

func (m *Mailer) SendStatusUpdate(ctx context.Context, order *models.Order, oldStatus models.OrderStatus) error {
	if order.User.Email == "" {
		return errors.New("order has no customer email")
	}
	body, err := RenderStatusUpdate(order, oldStatus, m.cfg.Currency)
	if err != nil {
		return err
	}
	return m.Send(ctx, []string{order.User.Email}, StatusEmailSubject(order.OrderStatus, order.OrderID), body)
}
