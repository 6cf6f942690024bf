package workflow

import (
	"strings"

	"github.com/clytar/clytar-backend/internal/apperr"
)

// Variation selects the tone of an alternate draft heading.
type Variation string

const (
	VariationEmotional  Variation = "emotional"
	VariationDataDriven Variation = "data_driven"
	VariationConcise    Variation = "concise"
)

var Variations = []Variation{VariationEmotional, VariationDataDriven, VariationConcise}

func ParseVariation(s string) (Variation, error) {
	v := Variation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch v {
	case VariationEmotional, VariationDataDriven, VariationConcise:
		return v, nil
	case "":
		return "", apperr.Missing(StageVariation, "variation")
	}
	return "", apperr.Invalid(StageVariation, "variation", s)
}

func (v Variation) heading(subject string) string {
	switch v {
	case VariationEmotional:
		return "# Stop Wasting Precious Hours: How " + subject + " Rescues Your Team"
	case VariationDataDriven:
		return "# The ROI of " + subject + ": What the Numbers Say"
	default:
		return "# " + subject + ": The Quick Version"
	}
}

// headingLine returns the byte span of the first "# " line, excluding its
// line terminator.
func headingLine(text string) (start, end int, ok bool) {
	pos := 0
	for {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := strings.TrimSuffix(text[pos:lineEnd], "\r")
		if strings.HasPrefix(line, "# ") {
			return pos, pos + len(line), true
		}
		if nl < 0 {
			return 0, 0, false
		}
		pos = lineEnd + 1
	}
}

// applyVariation swaps the first heading line of text for the variation's
// heading about subject. Every other byte is left as is.
func applyVariation(text string, v Variation, subject string) (string, error) {
	start, end, ok := headingLine(text)
	if !ok {
		return "", apperr.Missing(StageVariation, "heading")
	}
	subject = strings.Join(strings.Fields(subject), " ")
	if subject == "" {
		subject = strings.TrimSpace(text[start+2 : end])
	}
	return text[:start] + v.heading(subject) + text[end:], nil
}
