package app

import (
	"strconv"
	"strings"

	"offer_console/internal/domain"
)

// Literal fallbacks shown when neither the localized nor the legacy field is set.
const (
	FallbackTitle            = "Untitled Offer"
	FallbackDestination      = "Unknown Destination"
	FallbackShortDescription = "No short description available"
	FallbackDescription      = "No description available"
)

// Converter projects wire offers onto display offers.
type Converter struct {
	imageBase string
}

// NewConverter resolves relative image paths against imageBase (the backend origin).
func NewConverter(imageBase string) *Converter {
	return &Converter{imageBase: strings.TrimRight(imageBase, "/")}
}

// ToDisplay builds the lang projection of o. Each text field falls back
// independently: localized value, then legacy value, then a literal.
func (c *Converter) ToDisplay(o domain.Offer, lang domain.Lang) domain.DisplayOffer {
	loc, legacy := o.Localized(lang), o.Legacy()

	d := domain.DisplayOffer{
		ID:               o.ID,
		Title:            firstNonBlank(loc.Title, legacy.Title, FallbackTitle),
		Destination:      firstNonBlank(loc.Destination, legacy.Destination, FallbackDestination),
		ShortDescription: firstNonBlank(loc.ShortDescription, legacy.ShortDescription, FallbackShortDescription),
		Description:      firstNonBlank(loc.BigDescription, legacy.BigDescription, FallbackDescription),
		Rating:           float64(o.Stars),
		Duration:         strconv.Itoa(o.Duration),
		Image:            c.ResolveImageURL(o.MainImage),
		AdditionalImages: make([]string, 0, len(o.Images)),
		Available:        o.Available,
		CreatedAt:        o.CreatedAt,
		Language:         lang,
	}
	for _, img := range o.Images {
		d.AdditionalImages = append(d.AdditionalImages, c.ResolveImageURL(img))
	}

	if strings.TrimSpace(o.TitleEN) != "" && strings.TrimSpace(o.TitleFR) != "" {
		d.Translations = map[domain.Lang]domain.LocalizedText{
			domain.LangEN: o.Localized(domain.LangEN),
			domain.LangFR: o.Localized(domain.LangFR),
		}
	}
	return d
}

// ToDisplayAll converts a list response, keeping its order.
func (c *Converter) ToDisplayAll(in []domain.Offer, lang domain.Lang) []domain.DisplayOffer {
	out := make([]domain.DisplayOffer, 0, len(in))
	for _, o := range in {
		out = append(out, c.ToDisplay(o, lang))
	}
	return out
}

// ResolveImageURL passes absolute and data URLs through and joins anything
// else onto the image base with exactly one slash.
func (c *Converter) ResolveImageURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	return c.imageBase + "/" + strings.TrimLeft(ref, "/")
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
