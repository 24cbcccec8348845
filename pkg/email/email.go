// Package email composes MIME messages and delivers them over SMTP.
package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	Body     string
	Date     time.Time
}

// Compose renders m as a single-part text/plain RFC 5322 message.
func Compose(m Message) ([]byte, error) {
	if !strings.Contains(m.To, "@") {
		return nil, fmt.Errorf("invalid email address: %s", m.To)
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}

	var h mail.Header
	h.SetDate(m.Date)
	h.SetAddressList("From", []*mail.Address{{Name: m.FromName, Address: m.From}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, m.Body); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

// Send composes m and delivers it through server:port, upgrading to TLS when
// the server offers STARTTLS. PLAIN auth is used when username is set.
func Send(server string, port int, username, password string, m Message) error {
	msg, err := Compose(m)
	if err != nil {
		return err
	}
	var auth sasl.Client
	if username != "" {
		auth = sasl.NewPlainClient("", username, password)
	}
	addr := fmt.Sprintf("%s:%d", server, port)
	if err := smtp.SendMail(addr, auth, m.From, []string{m.To}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", m.To, err)
	}
	return nil
}
