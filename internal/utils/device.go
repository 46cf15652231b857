package utils

import (
	"strings"

	"oneoffice/internal/entity"
)

// DeviceInfo is best-effort metadata parsed from a client-declared identity
// string. It is cosmetic only and never feeds an authorization decision.
type DeviceInfo struct {
	Type     entity.DeviceType
	Browser  string
	Platform string
}

// Name returns a human-readable device label, e.g. "Chrome on Windows".
func (d DeviceInfo) Name() string {
	browser := d.Browser
	if browser == "" {
		browser = "Unknown browser"
	}
	if d.Platform == "" {
		return browser
	}
	return browser + " on " + d.Platform
}

func ParseUserAgent(userAgent string) DeviceInfo {
	ua := strings.ToLower(userAgent)
	info := DeviceInfo{
		Type:     deviceTypeOf(ua),
		Browser:  browserOf(ua),
		Platform: platformOf(ua),
	}
	return info
}

func deviceTypeOf(ua string) entity.DeviceType {
	switch {
	case ua == "":
		return entity.DeviceUnknown
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return entity.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return entity.DeviceMobile
	case strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") || strings.Contains(ua, "linux") || strings.Contains(ua, "x11"):
		return entity.DeviceDesktop
	default:
		return entity.DeviceUnknown
	}
}

func browserOf(ua string) string {
	// Order matters: Chrome UAs also contain "safari", Edge UAs contain both.
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return ""
	}
}

func platformOf(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux") || strings.Contains(ua, "x11"):
		return "Linux"
	default:
		return ""
	}
}
