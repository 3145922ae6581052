package dep

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"phishsim/entity"
	"phishsim/pkg/logutil"
	"phishsim/pkg/secret"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrEmptySmtpHost = errors.New("empty smtp host")

type smtpTransport struct {
	settings SettingsResolver
	box      secret.Box
	timeout  time.Duration
}

func NewSmtpTransport(_ context.Context, settings SettingsResolver, box secret.Box, timeout time.Duration) MailTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &smtpTransport{
		settings: settings,
		box:      box,
		timeout:  timeout,
	}
}

func (t *smtpTransport) Send(ctx context.Context, msg *MailMessage) (*SendReceipt, error) {
	if err := msg.validate(); err != nil {
		return nil, rejected(err)
	}

	settings, err := t.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	host := settings.GetHost()
	if host == "" {
		return nil, rejected(ErrEmptySmtpHost)
	}

	var (
		addr      = net.JoinHostPort(host, fmt.Sprint(settings.GetPort()))
		messageID = fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.From.Email))
		receipt   = &SendReceipt{
			Transport: fmt.Sprintf("smtp://%s", addr),
			MessageID: messageID,
		}
	)

	body, err := buildMessage(msg, messageID, time.Now())
	if err != nil {
		return nil, rejected(err)
	}

	client, err := t.dial(ctx, addr, host, settings.GetTLSMode())
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()

	if username := settings.GetUsername(); username != "" {
		password := t.openPassword(ctx, settings)
		if err := client.Auth(smtp.PlainAuth("", username, password, host)); err != nil {
			return nil, classifySmtpError("auth", err)
		}
	}

	if err := client.Mail(msg.From.Email); err != nil {
		return nil, classifySmtpError("mail from", err)
	}
	if err := client.Rcpt(msg.To.Email); err != nil {
		return nil, classifySmtpError("rcpt to", err)
	}

	w, err := client.Data()
	if err != nil {
		return nil, classifySmtpError("data", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, classifySmtpError("close", err)
	}

	_ = client.Quit()

	return receipt, nil
}

func (t *smtpTransport) dial(ctx context.Context, addr, host string, mode entity.TLSMode) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: t.timeout}
	tlsConfig := &tls.Config{ServerName: host}

	var (
		conn net.Conn
		err  error
	)
	if mode == entity.TLSModeImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	if mode == entity.TLSModeStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, rejected(errors.New("server does not support STARTTLS"))
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}

	return client, nil
}

// openPassword treats a secret that cannot be opened as no password.
func (t *smtpTransport) openPassword(ctx context.Context, settings *entity.MailSettings) string {
	sealed := settings.GetEncryptedPassword()
	if sealed == "" || t.box == nil {
		return ""
	}

	password, err := t.box.Open(sealed)
	if err != nil {
		log.Ctx(ctx).Warn().Msgf("smtp password cannot be opened, sending without it, err: %v", err)
		return ""
	}

	return password
}

// classifySmtpError marks 5xx replies as rejected so they are not retried.
func classifySmtpError(stage string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return rejected(fmt.Errorf("smtp %s: %w", stage, err))
	}
	return fmt.Errorf("smtp %s: %w", stage, err)
}

func buildMessage(msg *MailMessage, messageID string, now time.Time) ([]byte, error) {
	from := mail.Address{Name: msg.From.Name, Address: msg.From.Email}
	to := mail.Address{Name: msg.To.Name, Address: msg.To.Email}

	if _, err := mail.ParseAddress(from.String()); err != nil {
		return nil, fmt.Errorf("invalid from address %s: %w", logutil.MaskEmail(msg.From.Email), err)
	}
	if _, err := mail.ParseAddress(to.String()); err != nil {
		return nil, fmt.Errorf("invalid recipient address %s: %w", logutil.MaskEmail(msg.To.Email), err)
	}

	var buf bytes.Buffer

	headers := []string{
		fmt.Sprintf("From: %s", from.String()),
		fmt.Sprintf("To: %s", to.String()),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", msg.Subject)),
		fmt.Sprintf("Date: %s", now.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
	}
	buf.WriteString(strings.Join(headers, "\r\n"))
	buf.WriteString("\r\n\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HtmlContent)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("\r\n")

	return buf.Bytes(), nil
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return "localhost"
}
