package normalize

import (
	"context"
	"net"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailValidate = validator.New()

	reEmailLabel = regexp.MustCompile(`^(?i)(?:e-?mail|contact|mailto)\s*[:#-]?\s*`)
	// phone/fax fragments captured after the address on the same line
	reEmailTrailer = regexp.MustCompile(`(?i)[\s,;/|]+(?:phone|tel|fax|ph|cell)\b.*$`)
	reEmailToken   = regexp.MustCompile(`[^\s,;<>()\[\]]+@[^\s,;<>()\[\]]+`)
)

// MXChecker reports whether a mail domain can receive mail.
type MXChecker interface {
	HasMX(ctx context.Context, domain string) bool
}

// DNSMXChecker checks deliverability with an MX lookup.
type DNSMXChecker struct {
	Resolver *net.Resolver
}

func (c DNSMXChecker) HasMX(ctx context.Context, domain string) bool {
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	mx, err := r.LookupMX(ctx, domain)
	return err == nil && len(mx) > 0
}

// Email lowercases raw, strips labels and trailing noise, and validates the syntax.
// It returns nil for anything that is not a single valid address.
func Email(raw string) *string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	s = reEmailLabel.ReplaceAllString(s, "")
	s = reEmailTrailer.ReplaceAllString(s, "")

	token := reEmailToken.FindString(s)
	if token == "" {
		return nil
	}
	token = strings.Trim(token, ".:;'\"")
	if err := emailValidate.Var(token, "required,email"); err != nil {
		return nil
	}
	return &token
}

// DeliverableEmail is Email followed by an MX check on the domain.
func DeliverableEmail(ctx context.Context, raw string, checker MXChecker) *string {
	e := Email(raw)
	if e == nil || checker == nil {
		return e
	}
	at := strings.LastIndexByte(*e, '@')
	if !checker.HasMX(ctx, (*e)[at+1:]) {
		return nil
	}
	return e
}
