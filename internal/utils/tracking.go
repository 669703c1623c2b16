package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mssola/user_agent"
)

// UserAgentFamilyMax bounds what the beacon stores about a client.
const UserAgentFamilyMax = 50

// 🖼️ TransparentGIF returns a 1x1 transparent GIF
func TransparentGIF() []byte {
	// This is a base64 encoded 1x1 transparent GIF
	const transparentPixel = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"
	decoded, _ := base64.StdEncoding.DecodeString(transparentPixel)
	return decoded
}

// 🌐 GetIPAddress gets the real IP address from request
func GetIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	// Check X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	return strings.Split(r.RemoteAddr, ":")[0]
}

// HashIP returns the hex sha-256 digest of an IP address. The raw address
// is never stored; the digest still lets analytics count distinct openers.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// UserAgentFamily reduces a raw User-Agent header to its browser family,
// truncated to UserAgentFamilyMax. Unparseable strings fall back to the
// product token before the first slash.
func UserAgentFamily(raw string) string {
	if raw == "" {
		return ""
	}
	ua := user_agent.New(raw)
	family, _ := ua.Browser()
	if family == "" {
		family = strings.Split(raw, "/")[0]
	}
	if len(family) > UserAgentFamilyMax {
		family = family[:UserAgentFamilyMax]
	}
	return family
}
