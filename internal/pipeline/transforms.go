package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// booleanMarkers translate Russian affirmative and negative phrases to the
// canonical Yes/No values. Negative phrases are checked first because they
// contain the affirmative ones as substrings.
var booleanMarkers = []struct {
	marker string
	value  string
}{
	{"не предусмотрена", "No"},
	{"не предусмотрено", "No"},
	{"нет", "No"},
	{"да", "Yes"},
	{"предусмотрена", "Yes"},
	{"предусмотрено", "Yes"},
	{"есть", "Yes"},
}

// ParseBoolean maps a Russian yes/no phrase to "Yes" or "No". Empty input
// means the attribute is absent, which reads as "No"; unrecognized text is
// passed through unchanged.
func ParseBoolean(text string) string {
	if strings.TrimSpace(text) == "" {
		return "No"
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, m := range booleanMarkers {
		if strings.Contains(lower, m.marker) {
			return m.value
		}
	}
	return text
}

// couponFrequencyMarkers translate payment period phrases into payments per
// year. Longer phrases come first so they win over their substrings.
var couponFrequencyMarkers = []struct {
	marker string
	value  string
}{
	{"один раз в полугодие в конце полугодия", "2"},
	{"раз в полугодие", "2"},
	{"полугодие", "2"},
	{"один раз в год", "1"},
	{"раз в год", "1"},
	{"ежегодно", "1"},
	{"ежеквартально", "4"},
	{"раз в квартал", "4"},
	{"квартал", "4"},
	{"ежемесячно", "12"},
	{"раз в месяц", "12"},
	{"месяц", "12"},
	{"год", "1"},
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ParseCouponFrequency converts a payment period description into the number
// of payments per year as a string. A bare number in the text is used when
// no phrase matches; otherwise the text passes through unchanged.
func ParseCouponFrequency(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, m := range couponFrequencyMarkers {
		if strings.Contains(lower, m.marker) {
			return m.value
		}
	}
	if n := digitsPattern.FindString(text); n != "" {
		return n
	}
	return text
}

var monthNumbers = map[string]string{
	"января": "01", "февраля": "02", "марта": "03", "апреля": "04",
	"мая": "05", "июня": "06", "июля": "07", "августа": "08",
	"сентября": "09", "октября": "10", "ноября": "11", "декабря": "12",
}

var (
	paymentDatePattern  = regexp.MustCompile(`(\d{1,2})\s+(января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)`)
	firstPaymentPattern = regexp.MustCompile(`начиная с (\d{1,2})\s+(\p{L}+)\s+(\d{4})`)
)

// ParseInterestPaymentDates extracts the recurring payment dates and the
// first payment date out of a free-text payment schedule. The recurring
// dates are rendered as "[MM/DD ; MM/DD]"; the first payment date, when the
// text names one, as "MM/DD/YYYY".
func ParseInterestPaymentDates(text string) (dates, firstDate string) {
	if strings.TrimSpace(text) == "" {
		return "", ""
	}
	lower := strings.ToLower(text)

	// The "starting from" clause repeats one of the recurring dates, so the
	// extracted list is deduplicated in order.
	var formatted []string
	seen := map[string]bool{}
	for _, m := range paymentDatePattern.FindAllStringSubmatch(lower, -1) {
		d := fmt.Sprintf("%s/%s", monthNumbers[m[2]], padDay(m[1]))
		if !seen[d] {
			seen[d] = true
			formatted = append(formatted, d)
		}
	}
	if len(formatted) > 0 {
		dates = "[" + strings.Join(formatted, " ; ") + "]"
	}

	if m := firstPaymentPattern.FindStringSubmatch(lower); m != nil {
		month, ok := monthNumbers[m[2]]
		if !ok {
			month = "??"
		}
		firstDate = fmt.Sprintf("%s/%s/%s", month, padDay(m[1]), m[3])
	}
	return dates, firstDate
}

func padDay(day string) string {
	if len(day) == 1 {
		return "0" + day
	}
	return day
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText collapses whitespace runs, including newlines from multi-line
// card values, into single spaces.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
