// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package urlutil parses and classifies the destination URLs accepted by
// the voice-session router: scheme://[user@]host[:port][/path][?query][#frag].
package urlutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rapidaai/sessionrouter/internal/types"
)

// AddressFamily classifies a host literal.
type AddressFamily int

const (
	AddressFamilyUnspecified AddressFamily = iota
	AddressFamilyIPv4
	AddressFamilyIPv6
)

func (f AddressFamily) String() string {
	switch f {
	case AddressFamilyIPv4:
		return "tcp4"
	case AddressFamilyIPv6:
		return "tcp6"
	default:
		return "unspecified"
	}
}

// defaultPorts mirrors the reference implementation's per-scheme defaults.
var defaultPorts = map[types.Protocol]uint16{
	types.ProtocolWSS:   443,
	types.ProtocolHTTPS: 443,
	types.ProtocolWS:    80,
	types.ProtocolHTTP:  80,
	types.ProtocolSDT:   80,
}

var schemePrefixes = []struct {
	prefix string
	prot   types.Protocol
}{
	{"wss://", types.ProtocolWSS},
	{"https://", types.ProtocolHTTPS},
	{"ws://", types.ProtocolWS},
	{"http://", types.ProtocolHTTP},
	{"sdt://", types.ProtocolSDT},
}

// URL is a parsed destination URL.
type URL struct {
	Protocol types.Protocol
	User     string
	Host     string
	Port     uint16
	Path     string
	Query    string
	Fragment string
}

// Parse splits raw into its protocol, user, host, port, path, query, and
// fragment components. An unrecognized scheme is an error.
func Parse(raw string) (*URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("urlutil: empty url")
	}

	var prot types.Protocol = types.ProtocolInvalid
	var rest string
	for _, sp := range schemePrefixes {
		if strings.HasPrefix(raw, sp.prefix) {
			prot = sp.prot
			rest = raw[len(sp.prefix):]
			break
		}
	}
	if prot == types.ProtocolInvalid {
		return nil, fmt.Errorf("urlutil: invalid or unsupported scheme in %q", raw)
	}

	u := &URL{Protocol: prot, Port: defaultPorts[prot]}

	// Split off fragment, then query, then path, leaving the authority.
	authority := rest
	if i := strings.IndexByte(authority, '#'); i >= 0 {
		u.Fragment = authority[i+1:]
		authority = authority[:i]
	}
	if i := strings.IndexByte(authority, '?'); i >= 0 {
		u.Query = authority[i+1:]
		authority = authority[:i]
	}
	if i := strings.IndexByte(authority, '/'); i >= 0 {
		u.Path = authority[i:]
		authority = authority[:i]
	}

	if authority == "" {
		return nil, fmt.Errorf("urlutil: missing host in %q", raw)
	}

	if i := strings.IndexByte(authority, '@'); i >= 0 {
		u.User = authority[:i]
		authority = authority[i+1:]
	}

	host, port, err := splitHostPort(authority)
	if err != nil {
		return nil, fmt.Errorf("urlutil: %w", err)
	}
	u.Host = host
	if port != 0 {
		u.Port = port
	}

	return u, nil
}

// splitHostPort handles bracketed IPv6 literals ([::1]:443) as well as
// plain host[:port].
func splitHostPort(authority string) (string, uint16, error) {
	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated ipv6 literal in %q", authority)
		}
		host := authority[1:end]
		remainder := authority[end+1:]
		if remainder == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(remainder, ":") {
			return "", 0, fmt.Errorf("unexpected characters after ipv6 literal in %q", authority)
		}
		port, err := strconv.ParseUint(remainder[1:], 10, 16)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", authority, err)
		}
		return host, uint16(port), nil
	}

	if i := strings.LastIndexByte(authority, ':'); i >= 0 {
		host := authority[:i]
		port, err := strconv.ParseUint(authority[i+1:], 10, 16)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", authority, err)
		}
		return host, uint16(port), nil
	}
	return authority, 0, nil
}

// AddressFamily classifies the parsed host as a literal IPv4/IPv6 address,
// or unspecified when it names a host to be resolved later.
func (u *URL) AddressFamily() AddressFamily {
	ip := net.ParseIP(u.Host)
	if ip == nil {
		return AddressFamilyUnspecified
	}
	if ip.To4() != nil {
		return AddressFamilyIPv4
	}
	return AddressFamilyIPv6
}

// String reconstructs scheme://[user@]host[:port]<path>. Query and
// fragment are intentionally not reattached — the round-trip law in
// spec.md §8 is scoped to the authority and path.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(schemeString(u.Protocol))
	b.WriteString("://")
	if u.User != "" {
		b.WriteString(u.User)
		b.WriteByte('@')
	}
	if u.AddressFamily() == AddressFamilyIPv6 {
		b.WriteByte('[')
		b.WriteString(u.Host)
		b.WriteByte(']')
	} else {
		b.WriteString(u.Host)
	}
	if u.Port != 0 && u.Port != defaultPorts[u.Protocol] {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(u.Port), 10))
	}
	b.WriteString(u.Path)
	return b.String()
}

func schemeString(p types.Protocol) string {
	switch p {
	case types.ProtocolWSS:
		return "wss"
	case types.ProtocolWS:
		return "ws"
	case types.ProtocolHTTPS:
		return "https"
	case types.ProtocolHTTP:
		return "http"
	case types.ProtocolSDT:
		return "sdt"
	default:
		return ""
	}
}
