package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"tern/internal/models"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// OutgoingEmail is one fully personalized message ready for the wire.
type OutgoingEmail struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
	// Headers carries extras like List-Unsubscribe.
	Headers map[string]string
}

// Build renders the RFC 5322 payload. Both bodies present yields a
// multipart/alternative message, text part first.
func (m *OutgoingEmail) Build() ([]byte, error) {
	if m.To == "" {
		return nil, fmt.Errorf("no recipient address")
	}
	from := mail.Address{Name: m.FromName, Address: m.From}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.New().String(), domainOf(m.From))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	for k, v := range m.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	switch {
	case m.HTML != "" && m.Text != "":
		mw := multipart.NewWriter(&buf)
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
		tw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(m.Text)); err != nil {
			return nil, err
		}
		hw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := hw.Write([]byte(m.HTML)); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
	case m.HTML != "":
		fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n\r\n%s", m.HTML)
	default:
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n\r\n%s", m.Text)
	}

	return buf.Bytes(), nil
}

func domainOf(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return "localhost"
}

// SMTPClient sends through customer accounts. Port 465 uses implicit TLS,
// every other port STARTTLS. Sends are paced per account with a token
// bucket sized from the account's MaxSendRate (messages per minute).
type SMTPClient struct {
	timeout     time.Duration
	defaultRate int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewSMTPClient(timeout time.Duration, defaultRate int) *SMTPClient {
	if defaultRate <= 0 {
		defaultRate = 10
	}
	return &SMTPClient{
		timeout:     timeout,
		defaultRate: defaultRate,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (c *SMTPClient) limiterFor(account *models.SMTPAccount) *rate.Limiter {
	perMinute := account.MaxSendRate
	if perMinute <= 0 {
		perMinute = c.defaultRate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if lim, ok := c.limiters[account.ID]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	c.limiters[account.ID] = lim
	return lim
}

// Send delivers one message through the given account.
func (c *SMTPClient) Send(ctx context.Context, account *models.SMTPAccount, msg *OutgoingEmail) error {
	if err := c.limiterFor(account).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := msg.Build()
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", account.Host, account.Port)
	auth := sasl.NewPlainClient("", account.Username, account.Password)

	errCh := make(chan error, 1)
	go func() {
		if account.Port == 465 {
			errCh <- smtp.SendMailTLS(addr, auth, msg.From, []string{msg.To}, bytes.NewReader(payload))
			return
		}
		errCh <- smtp.SendMail(addr, auth, msg.From, []string{msg.To}, bytes.NewReader(payload))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.timeout):
		return fmt.Errorf("send via %s timed out after %s", addr, c.timeout)
	}
}

// TestConnection dials, negotiates TLS and authenticates without sending
// anything. Used before an account is accepted into the rotation pool.
func (c *SMTPClient) TestConnection(ctx context.Context, account *models.SMTPAccount) error {
	addr := fmt.Sprintf("%s:%d", account.Host, account.Port)
	tlsConfig := &tls.Config{ServerName: account.Host}

	errCh := make(chan error, 1)
	go func() {
		var client *smtp.Client
		var err error
		if account.Port == 465 {
			client, err = smtp.DialTLS(addr, tlsConfig)
		} else {
			client, err = smtp.DialStartTLS(addr, tlsConfig)
		}
		if err != nil {
			errCh <- fmt.Errorf("failed to connect to %s: %w", addr, err)
			return
		}
		defer client.Close()

		if err := client.Auth(sasl.NewPlainClient("", account.Username, account.Password)); err != nil {
			errCh <- fmt.Errorf("authentication failed: %w", err)
			return
		}
		errCh <- client.Quit()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.timeout):
		return fmt.Errorf("connection test to %s timed out after %s", addr, c.timeout)
	}
}
