package services

import (
	"net"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// normalizeURL parses raw as an absolute http(s) URL. A missing scheme
// defaults to https.
func normalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// siteDomain returns the hostname of raw without a leading "www.", lowercased.
// Hostnames must have a registrable domain under the public suffix list;
// IP addresses and localhost are accepted as they are.
func siteDomain(raw string) (string, error) {
	u, err := normalizeURL(raw)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "localhost" || net.ParseIP(host) != nil {
		return host, nil
	}
	if _, err := publicsuffix.Domain(host); err != nil {
		return "", ErrInvalidDomain
	}
	return host, nil
}
