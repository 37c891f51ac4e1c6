package weather

import (
	"context"
	"regexp"
)

// Fetcher retrieves raw current conditions from the weather provider.
type Fetcher interface {
	FetchCurrent(ctx context.Context, zipCode string) (*CurrentConditions, error)
	Configured() bool
}

var zipCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ValidZipCode reports whether s is a 5-digit or ZIP+4 US zip code.
func ValidZipCode(s string) bool {
	return zipCodePattern.MatchString(s)
}
