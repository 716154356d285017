package util

import (
	"net/url"
	"strings"
)

// trackingParams are stripped from deal URLs before they are served.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

// NormalizeURL strips tracking parameters and a trailing slash from http(s) URLs.
// Anything that does not parse as an absolute http(s) URL is returned as-is.
func NormalizeURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL, err
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return rawURL, nil
	}

	parsedURL.Host = strings.ToLower(parsedURL.Host)
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = parsedURL.Path[:len(parsedURL.Path)-1]
		// Clear RawPath to ensure String() regenerates the URL path without the trailing slash
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	changed := false
	for _, param := range trackingParams {
		if queryParams.Has(param) {
			queryParams.Del(param)
			changed = true
		}
	}
	if changed {
		parsedURL.RawQuery = queryParams.Encode()
	}
	return parsedURL.String(), nil
}
