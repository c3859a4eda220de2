// Package device turns raw User-Agent headers into short, human readable
// descriptions for login logs and audit entries.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Info is the parsed part of a User-Agent header.
type Info struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// Parse extracts browser, OS and device class from ua.
func Parse(ua string) Info {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return Info{}
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	browser := strings.TrimSpace(name)
	if major, _, _ := strings.Cut(version, "."); browser != "" && major != "" {
		browser += " " + major
	}
	return Info{
		Browser: browser,
		OS:      strings.TrimSpace(parsed.OS()),
		Mobile:  parsed.Mobile(),
		Bot:     parsed.Bot(),
	}
}

// ParseUserAgent renders ua as "<browser> on <os>".
func ParseUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return unknownDevice
	}
	info := Parse(ua)
	browser := info.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := info.OS
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
