// Package mailer delivers rendered emails over SMTP, one session per attempt.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/util"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrAuthUnsupported means credentials are configured but the server does not offer AUTH.
var ErrAuthUnsupported = errors.New("smtp server does not offer AUTH")

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ImplicitTLS bool // SMTPS; otherwise STARTTLS when offered
	Timeout     time.Duration
}

// Client is the part of *smtp.Client a session uses.
type Client interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// DialFunc opens a new SMTP session.
type DialFunc func(ctx context.Context, cfg Config) (Client, error)

type SMTPSender struct {
	cfg  Config
	fs   afero.Fs
	dial DialFunc
	now  func() time.Time
	log  *zap.Logger
}

func NewSMTPSender(cfg Config, fs afero.Fs, log *zap.Logger) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, fs: fs, dial: Dial, now: time.Now, log: log}
}

// WithDialer swaps the session factory.
func (s *SMTPSender) WithDialer(d DialFunc) *SMTPSender {
	s.dial = d
	return s
}

// Send builds the message and transmits it to to+cc+bcc in one session.
// A nil error means the server accepted the message.
func (s *SMTPSender) Send(ctx context.Context, m Message) (err error) {
	rcpts := m.Recipients()
	if len(rcpts) == 0 {
		return errors.New("no recipients")
	}

	files := s.readAttachments(m.Attachments)
	msgID := fmt.Sprintf("<%s@%s>", util.New(), s.cfg.Host)
	raw, err := build(s.cfg.From, msgID, s.now(), m, files)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	c, err := s.dial(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if s.cfg.Username != "" && s.cfg.Password != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return ErrAuthUnsupported
		}
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(envelopeAddress(s.cfg.From)); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, r := range rcpts {
		if err := c.Rcpt(envelopeAddress(r)); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	if err := c.Quit(); err != nil {
		s.log.Debug("smtp quit", zap.Error(err))
		_ = c.Close()
	}
	return nil
}

// readAttachments skips files that vanished after resolution.
func (s *SMTPSender) readAttachments(paths []string) []Attachment {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		b, err := afero.ReadFile(s.fs, p)
		if err != nil {
			s.log.Warn("attachment unreadable, skipped", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, Attachment{Name: filepath.Base(p), Content: b})
	}
	return out
}

// Dial connects with implicit TLS or plain TCP upgraded by STARTTLS when the server offers it.
func Dial(ctx context.Context, cfg Config) (Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tlsCfg := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	nd := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: nd, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = nd.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}
	return c, nil
}
