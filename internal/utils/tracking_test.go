package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransparentGIF(t *testing.T) {
	gif := TransparentGIF()
	require.Len(t, gif, 42)
	require.True(t, strings.HasPrefix(string(gif), "GIF89a"))
	require.Equal(t, gif, TransparentGIF())
}

func TestGetIPAddress(t *testing.T) {
	t.Run("x-forwarded-for wins and only the first hop counts", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/t/open/abc", nil)
		req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
		req.Header.Set("X-Real-IP", "198.51.100.9")
		require.Equal(t, "203.0.113.7", GetIPAddress(req))
	})

	t.Run("x-real-ip when no forwarded header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/t/open/abc", nil)
		req.Header.Set("X-Real-IP", "198.51.100.9")
		require.Equal(t, "198.51.100.9", GetIPAddress(req))
	})

	t.Run("remote addr without the port as last resort", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/t/open/abc", nil)
		req.RemoteAddr = "192.0.2.44:52114"
		require.Equal(t, "192.0.2.44", GetIPAddress(req))
	})
}

func TestHashIP(t *testing.T) {
	digest := HashIP("203.0.113.7")
	require.Len(t, digest, 64)
	require.NotContains(t, digest, "203.0.113.7")
	require.Equal(t, digest, HashIP("203.0.113.7"))
	require.NotEqual(t, digest, HashIP("203.0.113.8"))

	for _, r := range digest {
		require.Contains(t, "0123456789abcdef", string(r))
	}
}

func TestUserAgentFamily(t *testing.T) {
	const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	t.Run("recognized browser", func(t *testing.T) {
		require.Equal(t, "Chrome", UserAgentFamily(chromeUA))
	})

	t.Run("empty input", func(t *testing.T) {
		require.Equal(t, "", UserAgentFamily(""))
	})

	t.Run("product token fallback", func(t *testing.T) {
		require.Equal(t, "FooMailer", UserAgentFamily("FooMailer/2.1"))
	})

	t.Run("long garbage is truncated", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		got := UserAgentFamily(long)
		require.Len(t, got, UserAgentFamilyMax)
		require.Equal(t, long[:UserAgentFamilyMax], got)
	})
}
