package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
	"offer_console/internal/media"
)

// MainImageEdit is the main-image axis of an edit. The zero value keeps the image.
type MainImageEdit struct {
	Replace *media.Pending
	Remove  bool
}

// GalleryEdit is the gallery axis of an edit. The zero value keeps the gallery.
// Remove and append compose; Replace overwrites the gallery with Images and
// cannot be combined with Remove.
type GalleryEdit struct {
	Replace bool
	Images  []media.Pending
	Remove  []int // positions in the gallery as it was before the edit
}

// Edits is what the edit form holds when the user saves. Content carries
// complete language blocks; nil pointers and missing blocks mean unchanged.
type Edits struct {
	Content   map[domain.Lang]domain.LocalizedText
	Stars     *int
	Duration  *string
	MainImage MainImageEdit
	Gallery   GalleryEdit
}

// BuildDiff turns edits of original into the minimal update payload. Fields
// equal to the original are left out and an untouched axis produces no
// image operation.
func BuildDiff(original domain.DisplayOffer, e Edits) (domain.UpdatePayload, error) {
	if e.MainImage.Replace != nil && e.MainImage.Remove {
		return domain.UpdatePayload{}, fmt.Errorf("%w: main image replaced and removed", domain.ErrConflictingEdit)
	}
	if e.Gallery.Replace && len(e.Gallery.Remove) > 0 {
		return domain.UpdatePayload{}, fmt.Errorf("%w: gallery replaced and trimmed", domain.ErrConflictingEdit)
	}

	p := domain.UpdatePayload{ID: original.ID, Fields: map[string]string{}}
	merged := domain.Draft{Content: map[domain.Lang]domain.LocalizedText{}, Stars: int(original.Rating), Duration: original.Duration}

	for _, lang := range domain.Languages {
		before := originalText(original, lang)
		merged.Content[lang] = before
		after, edited := e.Content[lang]
		if !edited {
			continue
		}
		after = cleanBlock(after)
		merged.Content[lang] = after
		for _, r := range textRules {
			if v := r.get(after); v != strings.TrimSpace(r.get(before)) {
				p.Fields[FieldKey(r.key, lang)] = v
			}
		}
	}
	if e.Stars != nil {
		merged.Stars = *e.Stars
		if float64(*e.Stars) != original.Rating {
			p.Fields["stars"] = fmt.Sprint(*e.Stars)
		}
	}
	if e.Duration != nil {
		merged.Duration = *e.Duration
		if d := normalizeDuration(*e.Duration); d != original.Duration {
			p.Fields["duration"] = d
		}
	}

	// only what is being sent has to be valid
	fe := domain.FieldErrors{}
	for k, msgs := range draftErrors(merged) {
		if _, changed := p.Fields[k]; changed {
			fe[k] = msgs
		}
	}
	addImageErrors(fe, e.MainImage.Replace, e.Gallery.Images)
	remove := normalizeIndices(e.Gallery.Remove)
	for _, i := range remove {
		if i < 0 || i >= len(original.AdditionalImages) {
			fe.Add("additionalImages", fmt.Sprintf("Gallery image %d does not exist", i+1))
		}
	}
	if !fe.Empty() {
		return domain.UpdatePayload{}, &domain.ValidationError{Fields: fe}
	}
	if len(p.Fields) == 0 {
		p.Fields = nil
	}

	switch {
	case e.MainImage.Replace != nil:
		up, err := media.Decode(*e.MainImage.Replace)
		if err != nil {
			return domain.UpdatePayload{}, imageValidation("mainImage", err)
		}
		p.MainImage = domain.ReplaceMainImage{Image: up}
	case e.MainImage.Remove && original.Image != "":
		p.MainImage = domain.RemoveMainImage{}
	}

	ups, err := media.DecodeAll(e.Gallery.Images)
	if err != nil {
		return domain.UpdatePayload{}, imageValidation("additionalImages", err)
	}
	switch {
	case e.Gallery.Replace:
		p.Gallery = domain.ReplaceGallery{Images: ups}
	case len(remove) > 0 || len(ups) > 0:
		p.Gallery = domain.PatchGallery{Remove: remove, Add: ups}
	}
	return p, nil
}

// originalText recovers the editable text of one language. Single-language
// records only know the language they were projected in.
func originalText(o domain.DisplayOffer, lang domain.Lang) domain.LocalizedText {
	if o.Translations != nil {
		return o.Translations[lang]
	}
	if o.Language == lang {
		return domain.LocalizedText{
			Title:            o.Title,
			Destination:      o.Destination,
			ShortDescription: o.ShortDescription,
			BigDescription:   o.Description,
		}
	}
	return domain.LocalizedText{}
}

func normalizeIndices(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// MediaManager sends edit diffs to the Offer Service and applies the
// result to the collection. At most one update runs per manager.
type MediaManager struct {
	svc   domain.OfferService
	store *CollectionStore
	conv  *Converter

	mu   sync.Mutex
	busy bool
}

func NewMediaManager(svc domain.OfferService, store *CollectionStore, conv *Converter) *MediaManager {
	return &MediaManager{svc: svc, store: store, conv: conv}
}

// Update diffs e against original and sends it. An empty diff returns
// original without calling the service.
func (m *MediaManager) Update(ctx context.Context, original domain.DisplayOffer, e Edits) (domain.DisplayOffer, error) {
	p, err := BuildDiff(original, e)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	if p.Empty() {
		return original, nil
	}
	return m.Send(ctx, p, original.Language)
}

// Send submits a prepared payload. On failure nothing local changes and the
// same payload may be sent again.
func (m *MediaManager) Send(ctx context.Context, p domain.UpdatePayload, lang domain.Lang) (domain.DisplayOffer, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return domain.DisplayOffer{}, domain.ErrAlreadyInProgress
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	updated, err := m.svc.Update(ctx, p)
	if ctx.Err() != nil {
		log.Debug().Str("offer_id", string(p.ID)).Msg("discarding late update result")
		return domain.DisplayOffer{}, ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("offer_id", string(p.ID)).Msg("offer update failed")
		return domain.DisplayOffer{}, &domain.SubmissionError{Err: err}
	}

	d := m.conv.ToDisplay(updated, lang)
	m.store.Upsert(d)
	log.Info().Str("offer_id", string(d.ID)).Int("fields", len(p.Fields)).Msg("offer updated")
	return d, nil
}
