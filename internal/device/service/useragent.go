package service

import (
	"strings"

	"github.com/mssola/useragent"
)

// describeUserAgent extracts the platform and OS version a device reports in
// its User-Agent header. Empty input yields empty values.
func describeUserAgent(userAgent string) (platform, osVersion string) {
	if strings.TrimSpace(userAgent) == "" {
		return "", ""
	}
	ua := useragent.New(userAgent)
	info := ua.OSInfo()
	platform = strings.TrimSpace(info.Name)
	if platform == "" {
		platform = strings.TrimSpace(ua.Platform())
	}
	return platform, strings.TrimSpace(info.Version)
}
