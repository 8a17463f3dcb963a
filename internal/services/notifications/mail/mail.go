// Package mail delivers rendered notifications over SMTP. The Transport
// interface keeps the dispatcher testable and leaves room for other
// channels.
package mail

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/gclavel/assurvie/internal/platform/timeouts"
)

// Receipt describes one accepted delivery.
type Receipt struct {
	MessageID string
	Accepted  time.Time
}

// Transport sends one message to one recipient. Implementations return an
// error only when the channel refused the message; the dispatcher records
// the outcome either way.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) (Receipt, error)
}

// SMTPTransport sends mail through a single SMTP relay.
type SMTPTransport struct {
	Addr     string
	From     string
	Auth     smtp.Auth
	clock    func() time.Time
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPTransport builds a transport for the relay at addr (host:port).
func NewSMTPTransport(addr, from string, auth smtp.Auth) *SMTPTransport {
	return &SMTPTransport{
		Addr:     addr,
		From:     from,
		Auth:     auth,
		clock:    time.Now,
		sendMail: smtp.SendMail,
	}
}

// Send submits one multipart message. The context bounds the attempt.
func (t *SMTPTransport) Send(ctx context.Context, to, subject, htmlBody, textBody string) (Receipt, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return Receipt{}, fmt.Errorf("recipient address is required")
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.MailSend)
	defer cancel()

	now := t.clock().UTC()
	messageID := fmt.Sprintf("<%d.%s>", now.UnixNano(), strings.TrimPrefix(t.From, "@"))
	body := buildMessage(t.From, to, subject, messageID, htmlBody, textBody, now)

	done := make(chan error, 1)
	go func() {
		done <- t.sendMail(t.Addr, t.Auth, t.From, []string{to}, body)
	}()
	select {
	case <-ctx.Done():
		return Receipt{}, fmt.Errorf("smtp send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Receipt{}, fmt.Errorf("smtp send: %w", err)
		}
	}
	return Receipt{MessageID: messageID, Accepted: now}, nil
}

const multipartBoundary = "assurvie-alt"

func buildMessage(from, to, subject, messageID, htmlBody, textBody string, now time.Time) []byte {
	var msg strings.Builder
	writeHeader := func(key, value string) {
		msg.WriteString(key)
		msg.WriteString(": ")
		msg.WriteString(value)
		msg.WriteString("\r\n")
	}
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", subject))
	writeHeader("Message-ID", messageID)
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `multipart/alternative; boundary="`+multipartBoundary+`"`)
	msg.WriteString("\r\n")

	writePart := func(contentType, body string) {
		msg.WriteString("--" + multipartBoundary + "\r\n")
		msg.WriteString("Content-Type: " + contentType + "; charset=utf-8\r\n\r\n")
		msg.WriteString(body)
		msg.WriteString("\r\n")
	}
	writePart("text/plain", textBody)
	writePart("text/html", htmlBody)
	msg.WriteString("--" + multipartBoundary + "--\r\n")
	return []byte(msg.String())
}
