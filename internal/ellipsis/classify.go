package ellipsis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/JoobyPM/ellipsis-render/internal/markup"
)

// Kind tags the shape of a value handed to Render.
type Kind int

const (
	// KindOther is anything that is neither a string nor a number; it passes through.
	KindOther Kind = iota
	// KindPlainText is a string or number rendered as plain text.
	KindPlainText
	// KindMarkup is a string carrying element tags.
	KindMarkup
)

func (k Kind) String() string {
	switch k {
	case KindPlainText:
		return "plain"
	case KindMarkup:
		return "markup"
	default:
		return "other"
	}
}

// Input is a classified render value. Text holds the string form for
// KindPlainText and KindMarkup; Fragment is set only for KindMarkup.
type Input struct {
	Kind     Kind
	Text     string
	Fragment *markup.Fragment
}

// Classify decides once how a value will be rendered.
func Classify(value any) Input {
	s, ok := coerce(value)
	if !ok {
		return Input{Kind: KindOther}
	}
	// Whitespace around the outermost tags is not part of the markup.
	if trimmed := strings.TrimSpace(s); strings.HasPrefix(trimmed, "<") {
		if frag, err := markup.Parse(trimmed); err == nil && frag.HasElements() {
			return Input{Kind: KindMarkup, Text: s, Fragment: frag}
		}
	}
	return Input{Kind: KindPlainText, Text: s}
}

// coerce returns the string form of strings and numbers.
func coerce(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return formatFloat(float64(v), 32), true
	case float64:
		return formatFloat(v, 64), true
	default:
		return "", false
	}
}

// formatFloat mirrors the number-to-string rules of the table host's
// scripting runtime: plain decimals in [1e-6, 1e21), exponent form outside,
// an unpadded exponent and no sign on zero.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case math.Abs(f) >= 1e21 || math.Abs(f) < 1e-6:
		return trimExponent(strconv.FormatFloat(f, 'e', -1, bitSize))
	default:
		return strconv.FormatFloat(f, 'f', -1, bitSize)
	}
}

// trimExponent turns "1e-07" into "1e-7".
func trimExponent(s string) string {
	mant, exp, ok := strings.Cut(s, "e")
	if !ok || len(exp) < 2 {
		return s
	}
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + exp[:1] + digits
}
