package listing

import (
	"math"
	"strconv"
	"strings"
)

const notSpecified = "Not specified"

// Salary is an optional range. Either bound may be missing.
type Salary struct {
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Currency string   `json:"currency,omitempty" yaml:"currency,omitempty"`
}

func (s Salary) IsZero() bool {
	return s.Min == nil && s.Max == nil
}

func (s Salary) String() string {
	currency := strings.TrimSpace(s.Currency)
	suffix := ""
	if currency != "" {
		suffix = " " + currency
	}

	switch {
	case s.Min != nil && s.Max != nil:
		if *s.Min == *s.Max {
			return formatAmount(*s.Min) + suffix
		}
		return formatAmount(*s.Min) + "-" + formatAmount(*s.Max) + suffix
	case s.Min != nil:
		return "from " + formatAmount(*s.Min) + suffix
	case s.Max != nil:
		return "up to " + formatAmount(*s.Max) + suffix
	default:
		return notSpecified
	}
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Employment types recognised across sources. These match the job-type
// preferences a profile can carry.
const (
	FullTime   = "full-time"
	PartTime   = "part-time"
	Contract   = "contract"
	Internship = "internship"
	Remote     = "remote"
)

var employmentAliases = map[string]string{
	"full-time":   FullTime,
	"fulltime":    FullTime,
	"full":        FullTime,
	"permanent":   FullTime,
	"part-time":   PartTime,
	"parttime":    PartTime,
	"part":        PartTime,
	"contract":    Contract,
	"contractor":  Contract,
	"temporary":   Contract,
	"freelance":   Contract,
	"project":     Contract,
	"internship":  Internship,
	"intern":      Internship,
	"probation":   Internship,
	"remote":      Remote,
	"remote-work": Remote,
}

// NormalizeEmploymentType maps free-form employment type text onto one of the
// known values, or returns "" when nothing matches.
func NormalizeEmploymentType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	if v, ok := employmentAliases[key]; ok {
		return v
	}
	for _, part := range strings.FieldsFunc(key, func(r rune) bool { return r == ',' || r == '/' || r == ';' }) {
		if v, ok := employmentAliases[strings.Trim(part, "-")]; ok {
			return v
		}
	}
	return ""
}

// completenessFields is the number of descriptive fields Completeness inspects.
const completenessFields = 8

// Completeness returns the populated fraction of the descriptive fields.
func Completeness(r Record) float64 {
	filled := 0
	for _, ok := range []bool{
		strings.TrimSpace(r.Title) != "",
		strings.TrimSpace(r.Company) != "",
		strings.TrimSpace(r.Location) != "",
		!r.Salary.IsZero(),
		strings.TrimSpace(r.EmploymentType) != "",
		strings.TrimSpace(r.Description) != "",
		strings.TrimSpace(r.URL) != "",
		r.PostedAt != nil,
	} {
		if ok {
			filled++
		}
	}
	return float64(filled) / completenessFields
}

// ParseSalary extracts a numeric range from display strings such as
// "$120,000 - $150,000 a year" or "from 90k EUR".
func ParseSalary(raw string) Salary {
	text := strings.TrimSpace(raw)
	if text == "" || strings.EqualFold(text, notSpecified) {
		return Salary{}
	}

	var out Salary
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "$") || strings.Contains(lower, "usd"):
		out.Currency = "USD"
	case strings.Contains(text, "€") || strings.Contains(lower, "eur"):
		out.Currency = "EUR"
	case strings.Contains(text, "£") || strings.Contains(lower, "gbp"):
		out.Currency = "GBP"
	case strings.Contains(lower, "rub") || strings.Contains(lower, "rur") || strings.Contains(text, "₽"):
		out.Currency = "RUR"
	}

	amounts := make([]float64, 0, 2)
	var num strings.Builder
	flush := func(multiplier float64) {
		if num.Len() == 0 {
			return
		}
		if v, err := strconv.ParseFloat(num.String(), 64); err == nil {
			amounts = append(amounts, v*multiplier)
		}
		num.Reset()
	}

	runes := []rune(lower)
	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
		case (r == '.' || r == ',') && num.Len() > 0:
			// a separator followed by exactly three digits groups thousands,
			// otherwise it is a decimal point as in "1,5k" or "45.5k"
			switch n := digitsAfter(runes, i); {
			case n == 3:
			case n > 0 && !strings.Contains(num.String(), "."):
				num.WriteRune('.')
			default:
				flush(1)
			}
		case r == 'k' && num.Len() > 0 && (i+1 == len(runes) || runes[i+1] < 'a' || runes[i+1] > 'z'):
			flush(1000)
		default:
			flush(1)
		}
	}
	flush(1)

	if len(amounts) == 0 {
		return Salary{}
	}

	minV := amounts[0]
	out.Min = &minV
	if len(amounts) > 1 {
		maxV := amounts[1]
		if maxV < minV {
			minV, maxV = maxV, minV
			out.Min = &minV
		}
		out.Max = &maxV
	} else if strings.Contains(lower, "up to") {
		out.Max, out.Min = out.Min, nil
	}
	return out
}

// digitsAfter counts the digits that directly follow position i.
func digitsAfter(runes []rune, i int) int {
	n := 0
	for j := i + 1; j < len(runes) && runes[j] >= '0' && runes[j] <= '9'; j++ {
		n++
	}
	return n
}
