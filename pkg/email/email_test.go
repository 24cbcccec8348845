package email

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	raw, err := Compose(Message{
		FromName: "Safe Zone Alerts",
		From:     "alerts@example.org",
		To:       "linh@example.org",
		Subject:  "[HIGH] Left a safe zone",
		Body:     "Ana left Home (115 m from center).",
		Date:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[HIGH] Left a safe zone", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "alerts@example.org", from[0].Address)
	assert.Equal(t, "Safe Zone Alerts", from[0].Name)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Ana left Home (115 m from center).", string(body))
}

func TestCompose_InvalidAddress(t *testing.T) {
	_, err := Compose(Message{From: "alerts@example.org", To: "not-an-address"})
	assert.Error(t, err)
}

type received struct {
	from string
	to   []string
	data []byte
}

type inbox struct {
	mu   sync.Mutex
	mail []received
}

func (b *inbox) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &inboxSession{inbox: b}, nil
}

func (b *inbox) messages() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.mail...)
}

type inboxSession struct {
	inbox *inbox
	cur   received
}

func (s *inboxSession) Mail(from string, opts *smtp.MailOptions) error {
	s.cur.from = from
	return nil
}

func (s *inboxSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.cur.to = append(s.cur.to, to)
	return nil
}

func (s *inboxSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.cur.data = data
	s.inbox.mu.Lock()
	s.inbox.mail = append(s.inbox.mail, s.cur)
	s.inbox.mu.Unlock()
	return nil
}

func (s *inboxSession) Reset()        { s.cur = received{} }
func (s *inboxSession) Logout() error { return nil }

func TestSend(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	box := &inbox{}
	srv := smtp.NewServer(box)
	srv.Domain = "localhost"
	go func() { _ = srv.Serve(l) }()
	defer srv.Close()

	port := l.Addr().(*net.TCPAddr).Port
	err = Send("127.0.0.1", port, "", "", Message{
		FromName: "Safe Zone Alerts",
		From:     "alerts@example.org",
		To:       "linh@example.org",
		Subject:  "[URGENT] Critical vital signs",
		Body:     "Heart rate 190 bpm.",
	})
	require.NoError(t, err)

	got := box.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "alerts@example.org", got[0].from)
	assert.Equal(t, []string{"linh@example.org"}, got[0].to)

	mr, err := mail.CreateReader(bytes.NewReader(got[0].data))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[URGENT] Critical vital signs", subject)
}

func TestSend_InvalidAddressSkipsServer(t *testing.T) {
	err := Send("127.0.0.1", 1, "", "", Message{From: "alerts@example.org", To: "nobody"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email address")
}
