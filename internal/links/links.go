// Package links normalizes user-entered URLs before they are sent for
// analysis and extracts a few local hints about them.
package links

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"

	"github.com/raysh454/cyra/internal/analyzer"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
	ErrBadScheme   = errors.New("unsupported scheme")
)

// Options controls optional canonicalization policies.
type Options struct {
	// DefaultScheme is assumed for schemeless input such as "example.com/x".
	// Empty means a scheme is required.
	DefaultScheme string

	// DropTrackingParams removes utm_*, gclid, fbclid and similar params.
	DropTrackingParams bool

	StripTrailingSlash bool
}

// DefaultOptions is what the link scanner uses.
func DefaultOptions() Options {
	return Options{DefaultScheme: "https", DropTrackingParams: true}
}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// Info describes a canonicalized link.
type Info struct {
	Canonical string `json:"canonical"`
	Scheme    string `json:"scheme"`
	Host      string `json:"host"`

	// UnicodeHost is the display form of an internationalized host.
	UnicodeHost string `json:"unicodeHost,omitempty"`

	IsIDN          bool `json:"isIdn"`
	IsIP           bool `json:"isIp"`
	HadCredentials bool `json:"hadCredentials"`
	Insecure       bool `json:"insecure"`
}

// Canonicalize returns a deterministic form of raw. Errors wrap
// analyzer.ErrValidation.
func Canonicalize(raw string, opts Options) (string, error) {
	info, err := Inspect(raw, opts)
	if err != nil {
		return "", err
	}
	return info.Canonical, nil
}

// Inspect canonicalizes raw and reports hints about it: the scheme is
// lowercased, the host lowercased and converted to punycode, default ports,
// credentials and fragments are removed, the path is cleaned and the query
// sorted.
func Inspect(raw string, opts Options) (*Info, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %w", analyzer.ErrValidation, ErrEmptyURL)
	}
	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", analyzer.ErrValidation, raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %w", analyzer.ErrValidation, ErrMissingHost)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %w %q", analyzer.ErrValidation, ErrBadScheme, u.Scheme)
	}

	info := &Info{
		Scheme:         u.Scheme,
		HadCredentials: u.User != nil,
		Insecure:       u.Scheme == "http",
	}

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	info.Host = host
	info.IsIP = net.ParseIP(host) != nil
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			info.IsIDN = true
			break
		}
	}
	if info.IsIDN {
		if uni, err := idna.Display.ToUnicode(host); err == nil {
			info.UnicodeHost = uni
		}
	}

	port := u.Port()
	switch {
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") || port == "":
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}
	if info.IsIP && strings.Contains(host, ":") && port == "" {
		u.Host = "[" + host + "]"
	}

	u.User = nil
	u.Fragment = ""

	clean := path.Clean(u.Path)
	if clean == "." {
		clean = "/"
	}
	if opts.StripTrailingSlash && len(clean) > 1 {
		clean = strings.TrimRight(clean, "/")
	}
	u.Path = clean
	u.RawPath = ""

	q := u.Query()
	if opts.DropTrackingParams {
		for k := range q {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				q.Del(k)
			}
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := url.Values{}
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			ordered.Add(k, v)
		}
	}
	u.RawQuery = ordered.Encode()

	info.Canonical = u.String()
	return info, nil
}
