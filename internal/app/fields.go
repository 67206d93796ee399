package app

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"offer_console/internal/domain"
)

// the backend renders text verbatim; strip any markup pasted into the form
var textPolicy = bluemonday.StrictPolicy()

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func cleanBlock(t domain.LocalizedText) domain.LocalizedText {
	return domain.LocalizedText{
		Title:            cleanText(t.Title),
		Destination:      cleanText(t.Destination),
		ShortDescription: cleanText(t.ShortDescription),
		BigDescription:   cleanText(t.BigDescription),
	}
}

// cleanDraft returns a copy of d with every text block cleaned.
func cleanDraft(d domain.Draft) domain.Draft {
	out := domain.Draft{Content: make(map[domain.Lang]domain.LocalizedText, len(d.Content)), Stars: d.Stars, Duration: d.Duration}
	for lang, block := range d.Content {
		out.Content[lang] = cleanBlock(block)
	}
	return out
}

// draftFields flattens a cleaned, validated draft into the wire field keys.
func draftFields(d domain.Draft) map[string]string {
	out := make(map[string]string, len(domain.Languages)*len(textRules)+2)
	for _, lang := range domain.Languages {
		block := d.Content[lang]
		for _, r := range textRules {
			out[FieldKey(r.key, lang)] = r.get(block)
		}
	}
	out["stars"] = strconv.Itoa(d.Stars)
	out["duration"] = normalizeDuration(d.Duration)
	return out
}

func normalizeDuration(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n)
	}
	return s
}
