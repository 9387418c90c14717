// Package device summarizes the browser an applicant onboards from.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Info is the parsed view of a User-Agent header.
type Info struct {
	Browser string
	Major   string
	OS      string
	Mobile  bool
}

// Parse extracts browser, major version and OS from a User-Agent string.
func Parse(userAgent string) Info {
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	return Info{
		Browser: strings.TrimSpace(browser),
		Major:   major,
		OS:      strings.TrimSpace(ua.OS()),
		Mobile:  ua.Mobile(),
	}
}

// ParseUserAgent returns a display name such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	info := Parse(userAgent)
	browser := info.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := info.OS
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Fingerprint hashes the stable parts of a User-Agent. Minor browser updates
// keep the same value. Empty input yields an empty fingerprint.
func Fingerprint(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	info := Parse(userAgent)
	sum := sha256.Sum256([]byte(info.Browser + "|" + info.Major + "|" + info.OS))
	return hex.EncodeToString(sum[:])
}
