package engine

import (
	"fmt"
	"phishsim/config"
	"phishsim/pkg/goutil"
	"strings"
)

// PhishingLinkPlaceholder is the href that template authors use for the landing page link.
const PhishingLinkPlaceholder = "{{PHISHING_LINK}}"

func IsPhishingLinkPlaceholder(href string) bool {
	return strings.EqualFold(strings.TrimSpace(href), PhishingLinkPlaceholder)
}

func trimBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

func OpenURL(baseURL string, campaignID, targetUserID uint64) string {
	return fmt.Sprintf("%s%s?c=%d&t=%d", trimBaseURL(baseURL), config.PathTrackOpen, campaignID, targetUserID)
}

func ClickURL(baseURL string, campaignID, targetUserID uint64, destination string) string {
	return fmt.Sprintf("%s%s?c=%d&t=%d&url=%s", trimBaseURL(baseURL), config.PathTrackClick, campaignID, targetUserID,
		goutil.Base64URLEncode(destination))
}

func LandingURL(baseURL string, campaignID, targetUserID uint64) string {
	return fmt.Sprintf("%s%s?c=%d&t=%d", trimBaseURL(baseURL), config.PathTrackLanding, campaignID, targetUserID)
}
