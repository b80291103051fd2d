package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "civreg/pkg/domain-errors"
)

// FiscalYear labels the fiscal year a date falls into as "Y-Y+1". A date in
// or after the start month belongs to the year opening that month; earlier
// dates belong to the year that opened the previous calendar year.
func FiscalYear(date time.Time, startMonth time.Month) string {
	year := date.Year()
	if date.Month() < startMonth {
		year--
	}
	return fmt.Sprintf("%d-%d", year, year+1)
}

// ParseFiscalYear validates the "Y-Y+1" label and returns it trimmed.
func ParseFiscalYear(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	first, second, ok := strings.Cut(raw, "-")
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "fiscal year must be formatted like 2025-2026")
	}
	a, errA := strconv.Atoi(first)
	b, errB := strconv.Atoi(second)
	if errA != nil || errB != nil || a < 1000 || a > 9999 {
		return "", dErrors.New(dErrors.CodeValidation, "fiscal year must be formatted like 2025-2026")
	}
	if b != a+1 {
		return "", dErrors.New(dErrors.CodeValidation, "fiscal year must span two consecutive years")
	}
	return raw, nil
}
