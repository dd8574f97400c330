package source

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/teranos/jobtrail/errors"
)

// trackingParams are query parameters that never change which posting a URL names
var trackingParams = map[string]bool{
	"gclid":      true,
	"fbclid":     true,
	"mc_cid":     true,
	"mc_eid":     true,
	"ref":        true,
	"refid":      true,
	"trk":        true,
	"trackingid": true,
	"_ga":        true,
}

func isTrackingParam(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "utm_") || trackingParams[lower]
}

// NormalizeURL returns the canonical form of a posting URL used as its key.
//
// Scheme and host are lowercased, default ports and fragments dropped,
// tracking parameters removed, the remaining query sorted and a trailing
// slash trimmed. Path case is preserved.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Wrapf(errors.ErrValidation, "invalid URL %q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.NewValidationError("URL %q must be absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for name := range query {
		if isTrackingParam(name) {
			query.Del(name)
		}
	}
	// Encode sorts by key; values keep their order
	u.RawQuery = query.Encode()
	u.ForceQuery = false

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	} else {
		u.Path = ""
	}

	return u.String(), nil
}

// ContentKey returns "sha256:<hex>" of the NFC-normalized, trimmed text
func ContentKey(text string) string {
	normalized := norm.NFC.String(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return "sha256:" + hex.EncodeToString(sum[:])
}
