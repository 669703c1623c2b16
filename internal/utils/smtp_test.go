package utils

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMessage(t *testing.T, email *OutgoingEmail) *mail.Message {
	t.Helper()
	raw, err := email.Build()
	require.NoError(t, err)
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestBuildMultipartWhenBothBodiesPresent(t *testing.T) {
	msg := buildMessage(t, &OutgoingEmail{
		From:     "news@acme.io",
		FromName: "Acme News",
		To:       "jo@example.com",
		Subject:  "Welcome aboard",
		HTML:     "<p>Hello</p>",
		Text:     "Hello",
		Headers:  map[string]string{"List-Unsubscribe": "<https://mail.tern.sh/t/unsubscribe/abc>"},
	})

	require.Contains(t, msg.Header.Get("From"), "news@acme.io")
	require.Contains(t, msg.Header.Get("From"), "Acme News")
	require.Equal(t, "jo@example.com", msg.Header.Get("To"))
	require.Equal(t, "Welcome aboard", msg.Header.Get("Subject"))
	require.Contains(t, msg.Header.Get("Message-ID"), "@acme.io>")
	require.Equal(t, "<https://mail.tern.sh/t/unsubscribe/abc>", msg.Header.Get("List-Unsubscribe"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	part, err := mr.NextPart()
	require.NoError(t, err)
	require.Contains(t, part.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(part)
	require.NoError(t, err)
	require.Equal(t, "Hello", string(body))

	part, err = mr.NextPart()
	require.NoError(t, err)
	require.Contains(t, part.Header.Get("Content-Type"), "text/html")
	body, err = io.ReadAll(part)
	require.NoError(t, err)
	require.Equal(t, "<p>Hello</p>", string(body))
}

func TestBuildHTMLOnly(t *testing.T) {
	msg := buildMessage(t, &OutgoingEmail{
		From:    "news@acme.io",
		To:      "jo@example.com",
		Subject: "Hi",
		HTML:    "<p>Hello</p>",
	})
	require.Contains(t, msg.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	require.Equal(t, "<p>Hello</p>", string(body))
}

func TestBuildDefaultsToPlainText(t *testing.T) {
	msg := buildMessage(t, &OutgoingEmail{
		From:    "news@acme.io",
		To:      "jo@example.com",
		Subject: "Hi",
		Text:    "Hello",
	})
	require.Contains(t, msg.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	require.Equal(t, "Hello", string(body))
}

func TestBuildRequiresRecipient(t *testing.T) {
	_, err := (&OutgoingEmail{From: "news@acme.io", Subject: "Hi", Text: "Hello"}).Build()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no recipient")
}

func TestBuildEncodesNonASCIISubject(t *testing.T) {
	raw, err := (&OutgoingEmail{
		From:    "news@acme.io",
		To:      "jo@example.com",
		Subject: "Grüße",
		Text:    "Hello",
	}).Build()
	require.NoError(t, err)
	require.Contains(t, string(raw), "=?utf-8?q?")
	require.False(t, strings.Contains(string(raw), "Subject: Grüße"))
}

func TestDomainOf(t *testing.T) {
	require.Equal(t, "acme.io", domainOf("news@acme.io"))
	require.Equal(t, "localhost", domainOf("no-at-sign"))
	require.Equal(t, "localhost", domainOf("trailing@"))
}
