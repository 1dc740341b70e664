package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docseries/internal/core/apperror"
)

// invalidSeriesChars would corrupt routing and query strings when a number is used in a URL.
const invalidSeriesChars = "/=?&%"

// maxDerivedSeries bounds DeriveSeriesID.
const maxDerivedSeries = 1000

// Pad renders prefix followed by n in base 10, left-padded with zeros to width.
// Numbers wider than width are not truncated.
func Pad(prefix string, n int64, width int) string {
	if width < 0 {
		width = 0
	}
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// ParseSuffix strips prefix from number and parses the remainder as a
// non-negative decimal. ok is false when the prefix does not match or the
// remainder is not made of digits only.
func ParseSuffix(prefix, number string) (n int64, ok bool) {
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	rest := number[len(prefix):]
	if rest == "" {
		return 0, false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateSeriesID checks that a series id can be used as a number prefix.
func ValidateSeriesID(seriesID string) error {
	if strings.TrimSpace(seriesID) == "" {
		return apperror.NewValidation("number series id is required").
			WithDetail("field", "id")
	}
	if strings.ContainsAny(seriesID, invalidSeriesChars) {
		return apperror.NewValidation("the following characters cannot be used in a number series id: / ? & = %").
			WithDetail("field", "id").
			WithDetail("value", seriesID)
	}
	return nil
}

// NormalizePrefix turns a display abbreviation into a series id base ending with '-'.
func NormalizePrefix(abbreviation string) string {
	p := strings.TrimSpace(abbreviation)
	if p == "" {
		p = strings.TrimSuffix(genericSeriesPrefix, "-")
	}
	if !strings.HasSuffix(p, "-") {
		p += "-"
	}
	return p
}

// DeriveSeriesID returns base if it is free, otherwise the first free id in
// the sequence base[:-1]+"1-", base[:-1]+"2-", ...
func DeriveSeriesID(ctx context.Context, base string, exists func(ctx context.Context, id string) (bool, error)) (string, error) {
	base = NormalizePrefix(base)
	stem := strings.TrimSuffix(base, "-")

	candidate := base
	for i := 1; i <= maxDerivedSeries; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = stem + strconv.Itoa(i) + "-"
	}
	return "", apperror.NewConflict("no free number series id for prefix " + base)
}
