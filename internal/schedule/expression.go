package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is returned for cron strings EventBridge would reject.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Expression is a validated EventBridge six-field cron expression:
//
//	minute hour day-of-month month day-of-week year
//
// Day-of-week counts 1-7 from Sunday. Exactly one of day-of-month and
// day-of-week is "?".
type Expression struct {
	raw string
	// canonical has names and numbers reduced to plain numbers per field.
	canonical string
	years     map[int]bool
	// schedule is nil when the expression uses L, W or # which the
	// standard parser cannot evaluate.
	schedule cron.Schedule
}

type fieldSpec struct {
	name     string
	min, max int
	names    map[string]int
	question bool
	special  func(token string) bool
}

var (
	monthNames = map[string]int{
		"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
		"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
	}
	dayNames = map[string]int{
		"SUN": 1, "MON": 2, "TUE": 3, "WED": 4, "THU": 5, "FRI": 6, "SAT": 7,
	}
	dayNumbers = [...]string{"", "SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

	minuteField = fieldSpec{name: "minute", min: 0, max: 59}
	hourField   = fieldSpec{name: "hour", min: 0, max: 23}
	domField    = fieldSpec{name: "day-of-month", min: 1, max: 31, question: true, special: isDayOfMonthSpecial}
	monthField  = fieldSpec{name: "month", min: 1, max: 12, names: monthNames}
	dowField    = fieldSpec{name: "day-of-week", min: 1, max: 7, names: dayNames, question: true, special: isDayOfWeekSpecial}
	yearField   = fieldSpec{name: "year", min: 1970, max: 2199}

	// dayValue parses the day in L and # tokens. It must not refer to
	// isDayOfWeekSpecial, which would make dowField initialize itself.
	dayValue = fieldSpec{name: "day-of-week", min: 1, max: 7, names: dayNames}
)

// ParseExpression validates a six-field cron expression.
func ParseExpression(s string) (Expression, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Expression{}, errors.WithHint(
			errors.Wrapf(ErrInvalidExpression, "%q has %d fields, want 6", s, len(fields)),
			"use: minute hour day-of-month month day-of-week year, e.g. 0 17 ? * MON-FRI *",
		)
	}

	specs := []fieldSpec{minuteField, hourField, domField, monthField, dowField, yearField}
	special := false
	for i, spec := range specs {
		usesSpecial, err := validateField(fields[i], spec)
		if err != nil {
			return Expression{}, errors.Wrapf(err, "%q", s)
		}
		special = special || usesSpecial
	}

	domQ, dowQ := fields[2] == "?", fields[4] == "?"
	if domQ == dowQ {
		return Expression{}, errors.WithHint(
			errors.Wrapf(ErrInvalidExpression, "%q: exactly one of day-of-month and day-of-week must be ?", s),
			"put ? in the day field you are not restricting",
		)
	}

	canonical := make([]string, len(fields))
	for i, spec := range specs {
		canonical[i] = canonicalField(fields[i], spec)
	}
	expr := Expression{raw: strings.Join(fields, " "), canonical: strings.Join(canonical, " ")}
	expr.years = expandYears(fields[5])

	if !special {
		std := strings.Join([]string{fields[0], fields[1], starForQuestion(fields[2]), fields[3], standardDayOfWeek(fields[4])}, " ")
		sched, err := cron.ParseStandard(std)
		if err != nil {
			return Expression{}, errors.Wrapf(ErrInvalidExpression, "%q: %v", s, err)
		}
		expr.schedule = sched
	}

	return expr, nil
}

// MustParseExpression is ParseExpression for expressions known at compile time.
func MustParseExpression(s string) Expression {
	expr, err := ParseExpression(s)
	if err != nil {
		panic(err)
	}
	return expr
}

// String returns the normalized six-field expression.
func (e Expression) String() string {
	return e.raw
}

// ScheduleExpression returns the EventBridge form, cron(...).
func (e Expression) ScheduleExpression() string {
	return "cron(" + e.raw + ")"
}

// Equivalent reports whether e and o describe the same schedule. Day and
// month names compare equal to their numbers, so MON-FRI matches 2-6.
func (e Expression) Equivalent(o Expression) bool {
	return e.canonical == o.canonical
}

// Evaluable reports whether Next can compute firing times.
func (e Expression) Evaluable() bool {
	return e.schedule != nil
}

// Next returns up to n firing times after from, in UTC as EventBridge
// evaluates them. It returns nil when the expression is not Evaluable.
func (e Expression) Next(from time.Time, n int) []time.Time {
	if e.schedule == nil || n <= 0 {
		return nil
	}

	var out []time.Time
	t := from.UTC()
	// Year filtering can skip many candidates; bound the walk.
	for i := 0; i < 1_000_000 && len(out) < n; i++ {
		t = e.schedule.Next(t)
		if t.IsZero() || t.Year() > yearField.max {
			break
		}
		if e.years == nil || e.years[t.Year()] {
			out = append(out, t)
		}
	}
	return out
}

func validateField(field string, spec fieldSpec) (special bool, err error) {
	if field == "?" {
		if !spec.question {
			return false, errors.Wrapf(ErrInvalidExpression, "? is not allowed in %s", spec.name)
		}
		return false, nil
	}

	for _, item := range strings.Split(field, ",") {
		if item == "" {
			return false, errors.Wrapf(ErrInvalidExpression, "empty list item in %s", spec.name)
		}
		if spec.special != nil && spec.special(item) {
			special = true
			continue
		}
		if err := validateItem(item, spec); err != nil {
			return false, err
		}
	}
	return special, nil
}

func validateItem(item string, spec fieldSpec) error {
	base, step, hasStep := strings.Cut(item, "/")
	if hasStep {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return errors.Wrapf(ErrInvalidExpression, "bad step %q in %s", step, spec.name)
		}
	}

	if base == "*" {
		return nil
	}

	lo, hi, isRange := strings.Cut(base, "-")
	low, err := fieldValue(lo, spec)
	if err != nil {
		return err
	}
	if !isRange {
		return nil
	}
	high, err := fieldValue(hi, spec)
	if err != nil {
		return err
	}
	if high < low {
		return errors.Wrapf(ErrInvalidExpression, "range %s is reversed in %s", base, spec.name)
	}
	return nil
}

func fieldValue(s string, spec fieldSpec) (int, error) {
	if v, ok := spec.names[strings.ToUpper(s)]; ok {
		return v, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidExpression, "%q is not a valid %s", s, spec.name)
	}
	if v < spec.min || v > spec.max {
		return 0, errors.Wrapf(ErrInvalidExpression, "%d is outside %s range %d-%d", v, spec.name, spec.min, spec.max)
	}
	return v, nil
}

// isDayOfMonthSpecial matches L, LW and nW.
func isDayOfMonthSpecial(token string) bool {
	if token == "L" || token == "LW" {
		return true
	}
	if day, ok := strings.CutSuffix(token, "W"); ok {
		n, err := strconv.Atoi(day)
		return err == nil && n >= 1 && n <= 31
	}
	return false
}

// isDayOfWeekSpecial matches L, nL and n#k.
func isDayOfWeekSpecial(token string) bool {
	if token == "L" {
		return true
	}
	if day, ok := strings.CutSuffix(token, "L"); ok {
		_, err := fieldValue(day, dayValue)
		return err == nil
	}
	if day, nth, ok := strings.Cut(token, "#"); ok {
		if _, err := fieldValue(day, dayValue); err != nil {
			return false
		}
		k, err := strconv.Atoi(nth)
		return err == nil && k >= 1 && k <= 5
	}
	return false
}

// canonicalField rewrites the values of a validated field as plain numbers.
// Special tokens are only upper-cased.
func canonicalField(field string, spec fieldSpec) string {
	items := strings.Split(strings.ToUpper(field), ",")
	for i, item := range items {
		if item == "?" || (spec.special != nil && spec.special(item)) {
			continue
		}
		base, step, hasStep := strings.Cut(item, "/")
		if base != "*" {
			lo, hi, isRange := strings.Cut(base, "-")
			base = canonicalValue(lo, spec)
			if isRange {
				base += "-" + canonicalValue(hi, spec)
			}
		}
		if hasStep {
			n, _ := strconv.Atoi(step)
			base += "/" + strconv.Itoa(n)
		}
		items[i] = base
	}
	return strings.Join(items, ",")
}

func canonicalValue(s string, spec fieldSpec) string {
	v, err := fieldValue(s, spec)
	if err != nil {
		return s
	}
	return strconv.Itoa(v)
}

func starForQuestion(field string) string {
	if field == "?" {
		return "*"
	}
	return field
}

// standardDayOfWeek rewrites numeric days (1=SUN) as names so the standard
// parser, which counts from 0, reads them the same way.
func standardDayOfWeek(field string) string {
	if field == "?" {
		return "*"
	}
	items := strings.Split(field, ",")
	for i, item := range items {
		base, step, hasStep := strings.Cut(item, "/")
		lo, hi, isRange := strings.Cut(base, "-")
		base = dayName(lo)
		if isRange {
			base += "-" + dayName(hi)
		}
		if hasStep {
			base += "/" + step
		}
		items[i] = base
	}
	return strings.Join(items, ",")
}

func dayName(s string) string {
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 7 {
		return dayNumbers[n]
	}
	return s
}

// expandYears returns the allowed years, or nil for any year.
func expandYears(field string) map[int]bool {
	if field == "*" {
		return nil
	}
	years := make(map[int]bool)
	for _, item := range strings.Split(field, ",") {
		base, stepStr, _ := strings.Cut(item, "/")
		step := 1
		if stepStr != "" {
			step, _ = strconv.Atoi(stepStr)
		}
		lo, hi := yearField.min, yearField.max
		if base != "*" {
			l, h, isRange := strings.Cut(base, "-")
			lo, _ = strconv.Atoi(l)
			hi = lo
			if isRange {
				hi, _ = strconv.Atoi(h)
			} else if stepStr != "" {
				hi = yearField.max
			}
		}
		for y := lo; y <= hi; y += step {
			years[y] = true
		}
	}
	return years
}
