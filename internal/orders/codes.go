package orders

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode"

	"sonagent/internal/textutil"
)

// Order code shapes accepted by the lookup flow. Bare codes are the digit
// run with an optional C prefix ("C21102025"); full codes add the initial
// and phone suffix ("20241129-N-789").
var (
	bareCodePattern = regexp.MustCompile(`^C?\d{8}$`)
	fullCodePattern = regexp.MustCompile(`^\d{8}-[A-Z]-\d{3}$`)
	nonDigits       = regexp.MustCompile(`\D`)
)

// GenerateOrderCode builds the order code for a confirmed order:
// YYYYMMDD-<first letter of the customer name, uppercased>-<last three
// phone digits>. Missing pieces fall back to X and 000.
func GenerateOrderCode(name, phone string, t time.Time) string {
	datePart := t.Format("20060102")

	initial := 'X'
	for _, r := range textutil.SanitizeText(name, 0) {
		if unicode.IsLetter(r) {
			initial = unicode.ToUpper(r)
			break
		}
	}

	digits := nonDigits.ReplaceAllString(phone, "")
	suffix := "000"
	if len(digits) >= 3 {
		suffix = digits[len(digits)-3:]
	}

	return fmt.Sprintf("%s-%c-%s", datePart, initial, suffix)
}

// CodeDate is the order date recovered from a customer-supplied code.
type CodeDate struct {
	Day     int    `json:"day"`
	Month   int    `json:"month"`
	Year    int    `json:"year"`
	DateStr string `json:"date_str"`
}

// ParseOrderCode reads the date out of a customer-supplied order code.
// Customers quote codes as CDDMMYYYY or DDMMYYYY-X-YYY; all non-digits are
// dropped and the first eight digits are read as day, month, year.
func ParseOrderCode(code string) (CodeDate, error) {
	digits := nonDigits.ReplaceAllString(code, "")
	if len(digits) < 8 {
		return CodeDate{}, fmt.Errorf("order code %q has no date part", code)
	}

	day, _ := strconv.Atoi(digits[0:2])
	month, _ := strconv.Atoi(digits[2:4])
	year, _ := strconv.Atoi(digits[4:8])

	if day < 1 || day > 31 || month < 1 || month > 12 || year < 2020 || year > 2099 {
		return CodeDate{}, fmt.Errorf("order code %q has an invalid date %02d/%02d/%d", code, day, month, year)
	}

	return CodeDate{
		Day:     day,
		Month:   month,
		Year:    year,
		DateStr: fmt.Sprintf("%02d/%02d/%d", day, month, year),
	}, nil
}

// QueryKind classifies what a lookup query looks like, which decides the
// fields a search favors.
type QueryKind string

const (
	QueryOrderCode QueryKind = "order_code"
	QueryPhone     QueryKind = "phone"
	QueryName      QueryKind = "name"
)

// DetectQueryKind sniffs whether the customer typed an order code, a phone
// number or a name.
func DetectQueryKind(text string) QueryKind {
	trimmed := sanitizeQuery(text)
	if bareCodePattern.MatchString(trimmed) || fullCodePattern.MatchString(trimmed) {
		return QueryOrderCode
	}
	if textutil.ValidatePhone(trimmed) {
		return QueryPhone
	}
	return QueryName
}

func sanitizeQuery(text string) string {
	return textutil.SanitizeText(text, 200)
}
