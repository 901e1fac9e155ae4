package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPSender envia avisos a los padres via SMTP. Con implicitTLS abre la
// conexión ya cifrada (465); si no, usa STARTTLS cuando el servidor lo ofrece.
type SMTPSender struct {
	addr        string
	host        string
	auth        smtp.Auth
	from        mail.Address
	implicitTLS bool
	timeout     time.Duration
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	sender, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("smtp from is invalid: %w", err)
	}
	if name := strings.TrimSpace(fromName); name != "" {
		sender.Name = name
	}
	if port == 0 {
		port = 587
	}
	s := &SMTPSender{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		host:        host,
		from:        *sender,
		implicitTLS: useTLS,
		timeout:     defaultSMTPTimeout,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s, nil
}

func (s *SMTPSender) SendResponseNotice(ctx context.Context, toEmail string, notice ResponseNotice) error {
	subject, body := responseNoticeContent(notice)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) SendUpgradeLink(ctx context.Context, toEmail string, link string) error {
	if strings.TrimSpace(link) == "" {
		return fmt.Errorf("upgrade link is required")
	}
	subject, body := upgradeContent(link)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, body string) error {
	to, err := mail.ParseAddress(strings.TrimSpace(toEmail))
	if err != nil {
		return fmt.Errorf("recipient is invalid: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if !s.implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from.Address); err != nil {
		return err
	}
	if err := client.Rcpt(to.Address); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	msg := buildMessage(s.from, *to, subject, body, time.Now())
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	if s.implicitTLS {
		d := &tls.Dialer{Config: &tls.Config{ServerName: s.host}}
		return d.DialContext(ctx, "tcp", s.addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.addr)
}

// buildMessage arma un mensaje text/plain. Los saltos de línea en el asunto se
// descartan para no inyectar cabeceras.
func buildMessage(from, to mail.Address, subject, body string, at time.Time) string {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	domainPart := "localhost"
	if i := strings.LastIndex(from.Address, "@"); i >= 0 {
		domainPart = from.Address[i+1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mimeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domainPart)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}

func mimeHeader(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] >= 0x80 {
			return mime.QEncoding.Encode("utf-8", v)
		}
	}
	return v
}
