package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Lang string

const (
	LangEN Lang = "en"
	LangFR Lang = "fr"
)

// Languages lists every language an offer must be authored in, in form order.
var Languages = []Lang{LangEN, LangFR}

// ParseLang maps an Accept-Language style value onto a supported language.
// Anything that is not French is served in English.
func ParseLang(s string) Lang {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "fr") {
		return LangFR
	}
	return LangEN
}

// OfferID is the canonical identifier of a persisted offer.
// The backend has historically sent it both as a JSON string and as a JSON
// number; both decode to the same decimal string here and nowhere else.
type OfferID string

func (id *OfferID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = OfferID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("offer id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = OfferID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = OfferID(n.String())
	return nil
}

// Numeric reports the identifier as an integer for records created before
// ids became opaque. ok is false for opaque ids.
func (id OfferID) Numeric() (n int64, ok bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// LocalizedText is one language block of an offer.
type LocalizedText struct {
	Title            string `json:"title"`
	Destination      string `json:"destination"`
	ShortDescription string `json:"shortDescription"`
	BigDescription   string `json:"bigDescription"`
}

// Offer is the wire format persisted by the Offer Service.
// The unlabeled text fields predate bilingual offers and are only read as a
// fallback.
type Offer struct {
	ID OfferID `json:"id"`

	TitleEN            string `json:"title_en,omitempty"`
	TitleFR            string `json:"title_fr,omitempty"`
	DestinationEN      string `json:"destination_en,omitempty"`
	DestinationFR      string `json:"destination_fr,omitempty"`
	ShortDescriptionEN string `json:"shortDescription_en,omitempty"`
	ShortDescriptionFR string `json:"shortDescription_fr,omitempty"`
	BigDescriptionEN   string `json:"bigDescription_en,omitempty"`
	BigDescriptionFR   string `json:"bigDescription_fr,omitempty"`

	Title            string `json:"title,omitempty"`
	Destination      string `json:"destination,omitempty"`
	ShortDescription string `json:"shortDescription,omitempty"`
	BigDescription   string `json:"bigDescription,omitempty"`

	Stars     int        `json:"stars"`
	Duration  int        `json:"duration"`
	MainImage string     `json:"mainImage,omitempty"`
	Images    []string   `json:"images,omitempty"`
	Available bool       `json:"available"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Localized returns the language block for lang without any fallback applied.
func (o Offer) Localized(lang Lang) LocalizedText {
	if lang == LangFR {
		return LocalizedText{
			Title:            o.TitleFR,
			Destination:      o.DestinationFR,
			ShortDescription: o.ShortDescriptionFR,
			BigDescription:   o.BigDescriptionFR,
		}
	}
	return LocalizedText{
		Title:            o.TitleEN,
		Destination:      o.DestinationEN,
		ShortDescription: o.ShortDescriptionEN,
		BigDescription:   o.BigDescriptionEN,
	}
}

// Legacy returns the pre-bilingual text fields.
func (o Offer) Legacy() LocalizedText {
	return LocalizedText{
		Title:            o.Title,
		Destination:      o.Destination,
		ShortDescription: o.ShortDescription,
		BigDescription:   o.BigDescription,
	}
}

// DisplayOffer is a single-language projection of an Offer used by the
// presentation layer. It is rebuilt from the wire format, never edited.
type DisplayOffer struct {
	ID               OfferID    `json:"id"`
	Title            string     `json:"title"`
	Destination      string     `json:"destination"`
	ShortDescription string     `json:"shortDescription"`
	Description      string     `json:"description"`
	Rating           float64    `json:"rating"`
	Duration         string     `json:"duration"`
	Image            string     `json:"image"`
	AdditionalImages []string   `json:"additionalImages"`
	Available        bool       `json:"available"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	Language         Lang       `json:"language"`

	// Translations is nil for single-language records.
	Translations map[Lang]LocalizedText `json:"translations,omitempty"`
}

// Draft is the create form state. It has no identity until submitted.
type Draft struct {
	Content  map[Lang]LocalizedText
	Duration string
	Stars    int
}

// NewDraft returns an empty draft with a block per supported language.
func NewDraft() Draft {
	d := Draft{Content: make(map[Lang]LocalizedText, len(Languages))}
	for _, l := range Languages {
		d.Content[l] = LocalizedText{}
	}
	return d
}
