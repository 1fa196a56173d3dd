// Package useragent turns a browser user-agent string into a short device label.
package useragent

import (
	"strings"

	"github.com/mssola/useragent"
)

// Describe returns a label such as "Chrome on macOS". Unknown parts degrade to
// "Browser" and "Unknown OS" rather than failing.
func Describe(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "Unknown device"
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Browser"
	}
	return browser + " on " + osName(parsed.OS(), parsed.Platform())
}

func osName(osInfo, platform string) string {
	s := osInfo + " " + platform
	switch {
	case strings.Contains(s, "iPhone"), strings.Contains(s, "iPad"), strings.Contains(s, "iOS"):
		return "iOS"
	case strings.Contains(s, "Android"):
		return "Android"
	case strings.Contains(s, "Mac OS X"), strings.Contains(s, "Macintosh"):
		return "macOS"
	case strings.Contains(s, "Windows"):
		return "Windows"
	case strings.Contains(s, "CrOS"):
		return "ChromeOS"
	case strings.Contains(s, "Linux"), strings.Contains(s, "X11"):
		return "Linux"
	}
	return "Unknown OS"
}
