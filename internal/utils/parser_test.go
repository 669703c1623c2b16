package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestParseVariables(t *testing.T) {
	html := `<p>Hi {{firstName}}, welcome to {{ company }}. Bye {{firstName}}.</p>`
	vars, err := ParseVariables(html)
	require.NoError(t, err)
	require.Len(t, vars, 2)
	require.Contains(t, vars, "firstName")
	require.Contains(t, vars, "company")
}

func TestReplaceVariables(t *testing.T) {
	out := ReplaceVariables("Hello {{name}}, again {{name}}. {{unknown}} stays.", map[string]string{
		"name": "Jo",
	})
	require.Equal(t, "Hello Jo, again Jo. {{unknown}} stays.", out)
}

func TestJSONToMap(t *testing.T) {
	m, err := JSONToMap(datatypes.JSON(`{"company":"Acme","plan":"gold"}`))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"company": "Acme", "plan": "gold"}, m)

	_, err = JSONToMap(datatypes.JSON(`{broken`))
	require.Error(t, err)
}

func TestInjectTrackingPixel(t *testing.T) {
	const pixelURL = "https://mail.tern.sh/t/open/abc"

	t.Run("lands before the closing body tag", func(t *testing.T) {
		out := InjectTrackingPixel(`<html><body><p>Hi</p></body></html>`, pixelURL)
		require.Contains(t, out, `<img src="`+pixelURL+`"`)
		require.Less(t, strings.Index(out, "<img"), strings.Index(out, "</body>"))
	})

	t.Run("matches an uppercase body tag", func(t *testing.T) {
		out := InjectTrackingPixel(`<HTML><BODY>Hi</BODY></HTML>`, pixelURL)
		require.Contains(t, out, `<img src="`+pixelURL+`"`)
	})

	t.Run("appended when there is no body tag", func(t *testing.T) {
		out := InjectTrackingPixel(`<p>Hi</p>`, pixelURL)
		require.True(t, strings.HasPrefix(out, `<p>Hi</p>`))
		require.True(t, strings.HasSuffix(out, `style="display:none"/>`))
	})
}

func TestRewriteLinks(t *testing.T) {
	html := `<a href="https://acme.io/launch">go</a>` +
		`<a href="mailto:team@acme.io">mail</a>` +
		`<a href="tel:+15551234">call</a>` +
		`<a href="#top">top</a>`

	out := RewriteLinks(html, func(original string) string {
		return "https://mail.tern.sh/t/click/abc?url=" + original
	})
	require.Contains(t, out, `href="https://mail.tern.sh/t/click/abc?url=https://acme.io/launch"`)
	require.NotContains(t, out, `href="https://acme.io/launch"`)
	require.Contains(t, out, `href="mailto:team@acme.io"`)
	require.Contains(t, out, `href="tel:+15551234"`)
	require.Contains(t, out, `href="#top"`)
}

func TestRewriteLinksKeepsOriginalWhenWrapDeclines(t *testing.T) {
	html := `<a href="https://acme.io/launch">go</a>`
	out := RewriteLinks(html, func(string) string { return "" })
	require.Equal(t, html, out)
}

func TestAppendUnsubscribeFooter(t *testing.T) {
	const unsub = "https://mail.tern.sh/t/unsubscribe/abc?r=r1"

	out := AppendUnsubscribeFooter(`<html><body>Hi</body></html>`, unsub)
	require.Contains(t, out, `<a href="`+unsub+`">Unsubscribe</a>`)
	require.Less(t, strings.Index(out, "Unsubscribe"), strings.Index(out, "</body>"))

	out = AppendUnsubscribeFooter(`plain`, unsub)
	require.True(t, strings.HasPrefix(out, "plain"))
	require.Contains(t, out, "Unsubscribe")
}
