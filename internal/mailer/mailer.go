// Package mailer relays plain-text notifications over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

const (
	providerName = "smtp"
	displayName  = "Callify Contact Form"
	dialTimeout  = 15 * time.Second
)

// Config mirrors the SMTP settings.
type Config struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	From     string
	To       string
}

// Message is one outgoing mail.
type Message struct {
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends Messages through one SMTP relay.
type Mailer struct {
	cfg Config
	now func() time.Time
}

// New builds a Mailer. Missing settings are reported by Send.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, now: time.Now}
}

// Configured reports whether host, port and credentials are all set.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.Port > 0 && m.cfg.Username != "" && m.cfg.Password != ""
}

func (m *Mailer) sender() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func (m *Mailer) recipient() string {
	if m.cfg.To != "" {
		return m.cfg.To
	}
	return m.cfg.Username
}

// Send delivers msg to the configured recipient.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return &callify.ConfigurationError{Setting: "smtp"}
	}
	start := time.Now()
	err := m.deliver(ctx, msg)
	telemetry.ObserveProviderRequest(providerName, err, time.Since(start))
	if err != nil {
		return &callify.ProviderError{Provider: providerName, Err: err}
	}
	return nil
}

func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dial(ctx, addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close() //nolint:errcheck // Quit already closes on success

	if !m.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.sender()); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.recipient()); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(m.buildMessage(msg)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

func (m *Mailer) dial(ctx context.Context, addr string) (net.Conn, error) {
	if m.cfg.Secure {
		d := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: dialTimeout},
			Config:    &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12},
		}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		return conn, nil
	}
	d := &net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	return conn, nil
}

func (m *Mailer) buildMessage(msg Message) []byte {
	var b bytes.Buffer
	writeHeader := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	writeHeader("From", fmt.Sprintf("%q <%s>", displayName, m.sender()))
	writeHeader("To", m.recipient())
	if msg.ReplyTo != "" {
		writeHeader("Reply-To", msg.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", m.now().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=utf-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}
