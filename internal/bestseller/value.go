package bestseller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Value is a JSON scalar whose type varies between upstream responses.
type Value json.RawMessage

var missingMarkers = map[string]bool{
	"":     true,
	"None": true,
	"none": true,
	"null": true,
	"NULL": true,
	"nan":  true,
	"NaN":  true,
	"N/A":  true,
	"<NA>": true,
}

// IsMissing reports a JSON null, an absent field or a not-available marker.
func (v Value) IsMissing() bool {
	_, ok := v.Text()
	return !ok
}

// Text renders the value as text. Strings are unquoted and numbers keep their digits.
// Objects, arrays, nulls and missing markers have no text.
func (v Value) Text() (string, bool) {
	raw := bytes.TrimSpace(v)
	if len(raw) == 0 {
		return "", false
	}
	var s string
	switch raw[0] {
	case '{', '[':
		return "", false
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
	default:
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if missingMarkers[s] {
		return "", false
	}
	return s, true
}

// Identifier renders an ISBN-like value as a digit string, never in exponent form.
func (v Value) Identifier() (string, bool) {
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	if raw := bytes.TrimSpace(v); raw[0] != '"' && strings.ContainsAny(s, "eE.") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
	}
	return s, true
}

// Int coerces the value to an integer. Integral floats are accepted.
func (v Value) Int() (int64, error) {
	s, ok := v.Text()
	if !ok {
		return 0, errMissing
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

// Float coerces the value to a float.
func (v Value) Float() (float64, error) {
	s, ok := v.Text()
	if !ok {
		return 0, errMissing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) {
		return 0, errMissing
	}
	return f, nil
}

// ouncesPer converts catalog weight units to ounces.
var ouncesPer = map[string]float64{
	"oz":        1,
	"ounce":     1,
	"ounces":    1,
	"lb":        16,
	"lbs":       16,
	"pound":     16,
	"pounds":    16,
	"g":         1 / 28.349523125,
	"gram":      1 / 28.349523125,
	"grams":     1 / 28.349523125,
	"kg":        1000 / 28.349523125,
	"kilogram":  1000 / 28.349523125,
	"kilograms": 1000 / 28.349523125,
}

var weightPattern = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)\s*([a-zA-Z.]*)$`)

// Weight coerces a catalog weight ("14.4 ounces", "1.4 pounds", "500 grams") to ounces.
// A bare number is taken as ounces; an unknown unit is an error.
func (v Value) Weight() (float64, error) {
	f, err := v.Float()
	if err == nil || errors.Is(err, errMissing) {
		return f, err
	}
	s, _ := v.Text()
	m := weightPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("not a weight: %q", s)
	}
	factor, ok := ouncesPer[strings.TrimSuffix(strings.ToLower(m[2]), ".")]
	if !ok {
		return 0, fmt.Errorf("unknown weight unit %q", m[2])
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("not a weight: %q", s)
	}
	return n * factor, nil
}
