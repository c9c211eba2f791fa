package patterns

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"notaria/pkg/models"
)

// Ecuadorian provinces are numbered 01 to 24.
const (
	minProvinceCode = 1
	maxProvinceCode = 24
)

var (
	plateThreeLetters = regexp.MustCompile(`^[A-Z]{3}-?\d{3,4}$`)
	plateTwoLetters   = regexp.MustCompile(`^[A-Z]{2}-?\d{4,5}$`)
	vinFormat         = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	emailFormat       = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// ValidateCedula reports whether s is a 10 digit Ecuadorian national ID with
// a valid province prefix and check digit.
func ValidateCedula(s string) bool {
	if len(s) != 10 || !allDigits(s) {
		return false
	}
	province := int(s[0]-'0')*10 + int(s[1]-'0')
	if province < minProvinceCode || province > maxProvinceCode {
		return false
	}
	return cedulaCheckDigit(s[:9]) == int(s[9]-'0')
}

// cedulaCheckDigit computes the modulo 10 check digit over the first nine digits.
// Digits at even positions are doubled and reduced by 9 when the product exceeds 9.
func cedulaCheckDigit(first9 string) int {
	sum := 0
	for i := 0; i < 9; i++ {
		d := int(first9[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d >= 10 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ValidateRUC reports whether s is a 13 digit natural person RUC: a valid
// cédula followed by "001".
func ValidateRUC(s string) bool {
	if len(s) != 13 || !allDigits(s) {
		return false
	}
	return ValidateCedula(s[:10]) && s[10:] == "001"
}

// ValidatePlaca reports whether s is a plate in either the three letter
// (ABC-1234) or two letter (AB-1234) format. The hyphen is optional.
func ValidatePlaca(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	return plateThreeLetters.MatchString(s) || plateTwoLetters.MatchString(s)
}

// ValidateVIN reports whether s is a 17 character VIN without I, O or Q.
func ValidateVIN(s string) bool {
	return vinFormat.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// ValidateYear reports whether y is a plausible vehicle model year relative to now.
func ValidateYear(y int, now time.Time) bool {
	return y >= 1900 && y <= now.Year()+1
}

// ValidateEmail reports whether s looks like an email address.
func ValidateEmail(s string) bool {
	return emailFormat.MatchString(s)
}

var monthsES = map[string]time.Month{
	"ENERO":      time.January,
	"FEBRERO":    time.February,
	"MARZO":      time.March,
	"ABRIL":      time.April,
	"MAYO":       time.May,
	"JUNIO":      time.June,
	"JULIO":      time.July,
	"AGOSTO":     time.August,
	"SEPTIEMBRE": time.September,
	"SETIEMBRE":  time.September,
	"OCTUBRE":    time.October,
	"NOVIEMBRE":  time.November,
	"DICIEMBRE":  time.December,
}

var (
	spanishDate = regexp.MustCompile(`(?i)^(\d{1,2})\s+DE\s+([A-Z]+)\s+DEL?\s+(\d{4})$`)
	dayFirst    = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	yearFirst   = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
)

// ParseDate parses a Spanish long form date ("5 DE MARZO DEL 2021") or a
// numeric DD/MM/YYYY, YYYY/MM/DD or YYYY-MM-DD date and returns it as
// YYYY-MM-DD. The boolean is false for anything that is not a real calendar date.
func ParseDate(s string) (string, bool) {
	s = strings.Join(strings.Fields(Fold(s)), " ")

	var year, day int
	var month time.Month

	if m := spanishDate.FindStringSubmatch(s); m != nil {
		mm, ok := monthsES[strings.ToUpper(m[2])]
		if !ok {
			return "", false
		}
		day, _ = strconv.Atoi(m[1])
		month = mm
		year, _ = strconv.Atoi(m[3])
	} else if m := dayFirst.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		month = time.Month(mm)
		year, _ = strconv.Atoi(m[3])
	} else if m := yearFirst.FindStringSubmatch(s); m != nil {
		year, _ = strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		month = time.Month(mm)
		day, _ = strconv.Atoi(m[3])
	} else {
		return "", false
	}

	if month < time.January || month > time.December || day < 1 || year < 1900 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 31/02 comes back as March
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// ParseAmount converts a monetary string such as "$85,000.00", "85.000,00"
// or "USD 1500" into a float. Both comma and dot decimal conventions are
// accepted; when both separators appear the last one is the decimal mark.
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	for _, token := range []string{"US$", "USD", "DOLARES", "DÓLARES", "$", " "} {
		cleaned = strings.ReplaceAll(cleaned, token, "")
	}
	if cleaned == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		cleaned = normalizeSingleSeparator(cleaned, ",")
	case lastDot >= 0:
		cleaned = normalizeSingleSeparator(cleaned, ".")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}

// normalizeSingleSeparator treats sep as a decimal mark only when it occurs
// once and is followed by one or two digits.
func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) == 2 && len(parts[1]) >= 1 && len(parts[1]) <= 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.ReplaceAll(s, sep, "")
}

// Validate runs the validator registered for a field type. It returns nil for
// valid values and for types without a validator, and a *ValidationError otherwise.
func Validate(fieldType models.FieldType, value string) error {
	var ok bool
	switch fieldType {
	case models.FieldCedula:
		ok = ValidateCedula(value)
	case models.FieldRUC:
		ok = ValidateRUC(value)
	case models.FieldPlaca:
		ok = ValidatePlaca(value)
	case models.FieldChasis:
		ok = ValidateVIN(value)
	case models.FieldEmail:
		ok = ValidateEmail(value)
	case models.FieldFecha:
		_, ok = ParseDate(value)
	case models.FieldMonto:
		_, ok = ParseAmount(value)
	case models.FieldAnio:
		y, err := strconv.Atoi(value)
		ok = err == nil && ValidateYear(y, time.Now())
	default:
		return nil
	}
	if ok {
		return nil
	}
	return &ValidationError{Type: fieldType, Value: value, Err: ErrValidationFailed}
}

// Status maps a field type and value onto a ValidationStatus.
func Status(fieldType models.FieldType, value string) models.ValidationStatus {
	if !HasValidator(fieldType) {
		return models.ValidationUnknown
	}
	if err := Validate(fieldType, value); err != nil {
		return models.ValidationInvalid
	}
	return models.ValidationValid
}

// HasValidator reports whether a field type has a format validator.
func HasValidator(fieldType models.FieldType) bool {
	switch fieldType {
	case models.FieldCedula, models.FieldRUC, models.FieldPlaca, models.FieldChasis,
		models.FieldEmail, models.FieldFecha, models.FieldMonto, models.FieldAnio:
		return true
	}
	return false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
