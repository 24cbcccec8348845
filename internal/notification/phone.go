package notification

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers written without a country code.
const DefaultPhoneRegion = "VN"

var (
	phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

	reservedPrefixes = []string{"+1555", "555", "000", "123"}
)

var (
	ErrPhoneFormat     = errors.New("phone number is not a dialable number")
	ErrPhoneRepeated   = errors.New("phone number repeats a single digit")
	ErrPhoneSequential = errors.New("phone number is a digit sequence")
	ErrPhoneReserved   = errors.New("phone number uses a reserved test prefix")
)

// NormalizePhone validates phone and returns it in E.164 form. Numbers
// without a leading + are read as national numbers of region. Obvious test
// numbers are rejected before the number plan check.
func NormalizePhone(phone, region string) (string, error) {
	p := phoneCleaner.Replace(strings.TrimSpace(phone))
	digits := strings.TrimPrefix(p, "+")
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return "", ErrPhoneFormat
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return "", ErrPhoneReserved
		}
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return "", ErrPhoneRepeated
	}
	if sequential(digits, 1) || sequential(digits, -1) {
		return "", ErrPhoneSequential
	}

	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := phonenumbers.Parse(p, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrPhoneFormat
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// sequential reports whether each digit is the previous one plus step, mod 10.
func sequential(digits string, step int) bool {
	for i := 1; i < len(digits); i++ {
		want := (int(digits[i-1]-'0') + step + 10) % 10
		if int(digits[i]-'0') != want {
			return false
		}
	}
	return true
}
