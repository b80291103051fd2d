// Package idgen produces certificate numbers and tax receipt numbers.
//
// A certificate number is exactly 17 numeric characters: a 9-digit
// deterministic prefix followed by 8 random decimal digits. The prefix is the
// 4-digit birth year of the linked citizen plus the 5-digit jurisdiction code,
// or the current year plus the non-resident sentinel code for manual
// applicants. Randomness alone is not trusted for uniqueness; callers must
// pair generation with a conditional insert and bounded retry.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	dErrors "civreg/pkg/domain-errors"
)

// CertificateNumberLength is the fixed width of every certificate number.
const CertificateNumberLength = 17

// Generator builds certificate numbers for a configured jurisdiction.
type Generator struct {
	residentCode    string
	nonResidentCode string
}

// New validates the jurisdiction codes and returns a Generator.
// Both codes must be exactly 5 decimal digits and must differ, so resident-
// and non-resident-issued numbers stay visually distinguishable.
func New(residentCode, nonResidentCode string) (*Generator, error) {
	if !allDigits(residentCode) || len(residentCode) != 5 {
		return nil, dErrors.New(dErrors.CodeValidation, "resident code must be 5 decimal digits")
	}
	if !allDigits(nonResidentCode) || len(nonResidentCode) != 5 {
		return nil, dErrors.New(dErrors.CodeValidation, "non-resident code must be 5 decimal digits")
	}
	if residentCode == nonResidentCode {
		return nil, dErrors.New(dErrors.CodeValidation, "resident and non-resident codes must differ")
	}
	return &Generator{residentCode: residentCode, nonResidentCode: nonResidentCode}, nil
}

// ForCitizen builds a number for a certificate linked to a registered
// citizen, prefixed with the citizen's birth year and the resident code.
func (g *Generator) ForCitizen(birthYear int) (string, error) {
	if birthYear < 1000 || birthYear > 9999 {
		return "", dErrors.New(dErrors.CodeValidation, "birth year must have four digits")
	}
	suffix, err := randomDigits(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d%s%s", birthYear, g.residentCode, suffix), nil
}

// ForManual builds a number for a certificate with no citizen link, prefixed
// with the current year and the non-resident sentinel code.
func (g *Generator) ForManual(now time.Time) (string, error) {
	suffix, err := randomDigits(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d%s%s", now.Year(), g.nonResidentCode, suffix), nil
}

// ReceiptNumber builds a tax receipt number of the form TAX-{YYYY}{MM}-{NNNN}.
func ReceiptNumber(now time.Time) (string, error) {
	suffix, err := randomDigits(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TAX-%04d%02d-%s", now.Year(), int(now.Month()), suffix), nil
}

var ten = big.NewInt(10)

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("random digit: %w", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
