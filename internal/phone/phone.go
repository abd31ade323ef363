package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrInvalidFormat = errors.New("invalid phone number format")
	ErrInvalidNumber = errors.New("invalid phone number")
)

// Number es un telefono en formato internacional canonico (+<cc><abonado>, sin separadores).
// Solo se construye a traves de Normalizer.Normalize.
type Number struct {
	value string
}

func (n Number) String() string {
	return n.value
}

func (n Number) IsZero() bool {
	return n.value == ""
}

func (n Number) MarshalText() ([]byte, error) {
	return []byte(n.value), nil
}

// FromStored reconstruye un Number persistido; el valor ya era canonico al escribirse.
func FromStored(value string) Number {
	return Number{value: value}
}

// Normalizer canonicaliza telefonos de una region usando su plan de numeracion.
type Normalizer struct {
	region      string
	countryCode string
	mobileDigit byte
	mobileLen   int
	coarse      *regexp.Regexp
}

// NewNormalizer arma un normalizador para la region indicada (ej. "IR").
func NewNormalizer(region string) (*Normalizer, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	cc := phonenumbers.GetCountryCodeForRegion(region)
	if cc == 0 {
		return nil, fmt.Errorf("unsupported phone region %q", region)
	}
	example := phonenumbers.GetExampleNumberForType(region, phonenumbers.MOBILE)
	if example == nil {
		return nil, fmt.Errorf("no mobile numbering plan for region %q", region)
	}
	nsn := phonenumbers.GetNationalSignificantNumber(example)
	if nsn == "" {
		return nil, fmt.Errorf("no mobile numbering plan for region %q", region)
	}

	countryCode := strconv.Itoa(cc)
	digit := nsn[0]
	pattern := fmt.Sprintf(`^(?:\+%[1]s|00%[1]s|%[1]s|0|%[2]c)?%[2]c\d{%[3]d}$`, countryCode, digit, len(nsn)-1)

	return &Normalizer{
		region:      region,
		countryCode: countryCode,
		mobileDigit: digit,
		mobileLen:   len(nsn),
		coarse:      regexp.MustCompile(pattern),
	}, nil
}

func (n *Normalizer) Region() string {
	return n.region
}

// Normalize valida y devuelve la forma canonica. Los prefijos no reconocidos fallan con
// ErrInvalidFormat antes de consultar el plan de numeracion.
func (n *Normalizer) Normalize(raw string) (Number, error) {
	intl := "+" + n.countryCode
	candidate := strings.TrimSpace(raw)

	if !strings.HasPrefix(candidate, intl) {
		candidate = digitsOnly(candidate)
		switch {
		case strings.HasPrefix(candidate, "00"+n.countryCode):
			candidate = intl + candidate[2+len(n.countryCode):]
		case strings.HasPrefix(candidate, n.countryCode) && len(candidate) == len(n.countryCode)+n.mobileLen:
			candidate = "+" + candidate
		case strings.HasPrefix(candidate, "0"):
			candidate = intl + candidate[1:]
		case candidate != "" && candidate[0] == n.mobileDigit:
			candidate = intl + candidate
		default:
			return Number{}, ErrInvalidFormat
		}
	}

	parsed, err := phonenumbers.Parse(candidate, n.region)
	if err != nil {
		return Number{}, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return Number{}, ErrInvalidNumber
	}

	formatted := phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
	return Number{value: "+" + digitsOnly(formatted)}, nil
}

// LooksLikeMobile es un filtro grueso previo a Normalize; no es autoritativo.
func (n *Normalizer) LooksLikeMobile(raw string) bool {
	return n.coarse.MatchString(strings.TrimSpace(raw))
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
