// Package grading decides whether judge output matches an exercise's
// accepted answers.
package grading

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"code_dojo/internal/domain/model"
)

// Comparable is a canonical form compared by exact string equality.
type Comparable struct {
	Text     string
	Sequence bool
}

// Normalize canonicalizes raw judge output. The trimmed text is parsed as a
// JSON literal when possible; otherwise it is taken as a plain string.
func Normalize(raw string) Comparable {
	trimmed := strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return Comparable{Text: strings.ToLower(trimmed)}
	}
	return NormalizeValue(v)
}

// NormalizeValue canonicalizes an already decoded value. Sequences are joined
// with "," and lower-cased; scalars are trimmed and lower-cased.
func NormalizeValue(v any) Comparable {
	if list, ok := v.([]any); ok {
		return Comparable{Text: strings.ToLower(joinList(list)), Sequence: true}
	}
	return Comparable{Text: strings.ToLower(strings.TrimSpace(render(v)))}
}

// Matches reports whether output equals at least one accepted answer. A panic
// while normalizing counts as a mismatch.
func Matches(output string, solution model.Solution) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("output normalization failed", "panic", r)
			ok = false
		}
	}()

	got := Normalize(output)
	for _, candidate := range solution {
		want := NormalizeValue(candidate)
		text := want.Text
		if !got.Sequence {
			text = strings.TrimSpace(text)
		}
		if got.Text == text {
			return true
		}
	}
	return false
}

// render formats a decoded JSON value the way a JavaScript String() call would.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return formatNumber(f)
		}
		return x.String()
	case int:
		return strconv.Itoa(x)
	case []any:
		return joinList(x)
	case []string:
		return strings.Join(x, ",")
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			panic(fmt.Sprintf("render object: %v", err))
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// joinList renders list elements comma separated; null elements render empty.
func joinList(list []any) string {
	parts := make([]string, len(list))
	for i, el := range list {
		if el == nil {
			continue
		}
		parts[i] = render(el)
	}
	return strings.Join(parts, ",")
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go pads the exponent to two digits, JavaScript does not.
		s = strings.Replace(s, "e+0", "e+", 1)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
