package phone

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone is returned when the input is empty or not phone-shaped.
// Policy: reject rather than guess.
var ErrInvalidPhone = errors.New("invalid phone number")

// Number is a canonicalized phone number. Canonical always carries a country
// prefix (the configured default or a recognized alternate).
type Number struct {
	Canonical string
	suffix    string
	cc        string
}

// Normalizer canonicalizes raw phone strings into stable transport addresses
// and session keys. It is deterministic and side-effect free; the same
// normalizer instance must be used on the outbound (session creation) and
// inbound (reply matching) paths so key equality holds across both.
type Normalizer struct {
	// CountryCode is the default trunk prefix, e.g. "20".
	CountryCode string
	// AltPrefixes are country prefixes accepted as-is without prepending
	// the default country code.
	AltPrefixes []string
	// Suffix is the messaging-domain suffix appended to transport addresses,
	// e.g. "@s.whatsapp.net".
	Suffix string
}

const (
	DefaultCountryCode = "20"
	DefaultSuffix      = "@s.whatsapp.net"
)

// NewNormalizer returns a Normalizer with the production defaults.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		CountryCode: DefaultCountryCode,
		AltPrefixes: []string{"1"},
		Suffix:      DefaultSuffix,
	}
}

// Normalize canonicalizes raw into a Number. Rules:
//   - whitespace, hyphens, parentheses and a leading "+" are stripped
//   - a leading international trunk "00" is dropped
//   - a leading single "0" is replaced with the default country code
//   - a result carrying neither the default country code nor a recognized
//     alternate prefix gets the default country code prepended
func (n *Normalizer) Normalize(raw string) (Number, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Number{}, fmt.Errorf("empty input: %w", ErrInvalidPhone)
	}
	s = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "").Replace(s)
	s = strings.TrimPrefix(s, "+")
	if !digitsOnly(s) {
		return Number{}, fmt.Errorf("%q is not phone-shaped: %w", raw, ErrInvalidPhone)
	}

	switch {
	case strings.HasPrefix(s, "00"):
		s = s[2:]
	case strings.HasPrefix(s, "0"):
		s = n.CountryCode + s[1:]
	}

	if !strings.HasPrefix(s, n.CountryCode) && !n.hasAltPrefix(s) {
		s = n.CountryCode + s
	}

	if len(s) < 8 || len(s) > 15 {
		return Number{}, fmt.Errorf("%q has implausible length after canonicalization: %w", raw, ErrInvalidPhone)
	}
	return Number{Canonical: s, suffix: n.Suffix, cc: n.CountryCode}, nil
}

func (n *Normalizer) hasAltPrefix(s string) bool {
	for _, p := range n.AltPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// SessionKeyFromAddress derives the session key for an inbound transport
// address, e.g. "201234567890@s.whatsapp.net". It is the inbound counterpart
// of Number.SessionKey.
func (n *Normalizer) SessionKeyFromAddress(addr string) string {
	s := strings.TrimSuffix(addr, n.Suffix)
	return strings.TrimPrefix(s, n.CountryCode)
}

// Address returns the transport address for the number.
func (p Number) Address() string {
	return p.Canonical + p.suffix
}

// SessionKey returns the store lookup key: the canonical number with the
// default country code stripped, so the same logical customer maps to one
// key regardless of which prefix form triggered session creation.
func (p Number) SessionKey() string {
	return strings.TrimPrefix(p.Canonical, p.cc)
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
