package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceSummary extracts a human-readable device name from a User-Agent
// string for audit events, format "Browser on OS". Magic-link uses happen
// outside any session, so this is often the only client context recorded.
func DeviceSummary(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
