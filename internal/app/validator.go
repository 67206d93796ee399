package app

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"offer_console/internal/domain"
)

type lengthRule struct {
	label    string
	min, max int
}

var textRules = []struct {
	key  string
	rule lengthRule
	get  func(domain.LocalizedText) string
}{
	{"title", lengthRule{"Title", 3, 100}, func(t domain.LocalizedText) string { return t.Title }},
	{"destination", lengthRule{"Destination", 2, 100}, func(t domain.LocalizedText) string { return t.Destination }},
	{"shortDescription", lengthRule{"Short description", 10, 250}, func(t domain.LocalizedText) string { return t.ShortDescription }},
	{"bigDescription", lengthRule{"Description", 50, 2000}, func(t domain.LocalizedText) string { return t.BigDescription }},
}

// FieldKey builds the form key of a localized field, e.g. title_fr.
func FieldKey(field string, lang domain.Lang) string {
	return field + "_" + string(lang)
}

// ValidateDraft evaluates every rule against d and returns nil or a
// *domain.ValidationError listing all failures.
func ValidateDraft(d domain.Draft) error {
	if fe := draftErrors(d); !fe.Empty() {
		return &domain.ValidationError{Fields: fe}
	}
	return nil
}

func draftErrors(d domain.Draft) domain.FieldErrors {
	fe := domain.FieldErrors{}
	for _, lang := range domain.Languages {
		block := d.Content[lang] // a missing block validates as empty
		for _, r := range textRules {
			checkLength(fe, FieldKey(r.key, lang), r.get(block), r.rule, lang)
		}
	}

	if d.Stars < 1 || d.Stars > 5 {
		fe.Add("stars", "Stars must be between 1 and 5")
	}

	dur := strings.TrimSpace(d.Duration)
	switch n, err := strconv.Atoi(dur); {
	case dur == "":
		fe.Add("duration", "Duration is required")
	case err != nil:
		fe.Add("duration", "Duration must be a whole number of days")
	case n < 1 || n > 365:
		fe.Add("duration", "Duration must be between 1 and 365 days")
	}
	return fe
}

func checkLength(fe domain.FieldErrors, key, value string, r lengthRule, lang domain.Lang) {
	label := fmt.Sprintf("%s (%s)", r.label, strings.ToUpper(string(lang)))
	v := strings.TrimSpace(value)
	if v == "" {
		fe.Add(key, label+" is required")
		return
	}
	n := utf8.RuneCountInString(v)
	if n < r.min {
		fe.Add(key, fmt.Sprintf("%s must be at least %d characters", label, r.min))
	}
	if n > r.max {
		fe.Add(key, fmt.Sprintf("%s must be at most %d characters", label, r.max))
	}
}
