package app

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
	"offer_console/internal/media"
)

// Session is the console as seen in one language: its collection and the
// edit pipeline writing to it. The collection is loaded on first use and
// again after a write made in another language.
type Session struct {
	Catalog *CatalogService
	Media   *MediaManager

	mu    sync.Mutex
	stale bool
}

func (s *Session) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stale {
		return nil
	}
	if err := s.Catalog.Load(ctx); err != nil {
		return err
	}
	s.stale = false
	return nil
}

func (s *Session) markStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Console ties the per-language sessions to a single create form.
type Console struct {
	sessions map[domain.Lang]*Session
	form     *FormController
	def      domain.Lang
}

func NewConsole(svc domain.OfferService, cache domain.Cache, cacheTTL time.Duration,
	conv *Converter, def domain.Lang, includeUnavailable bool) *Console {
	c := &Console{
		sessions: make(map[domain.Lang]*Session, len(domain.Languages)),
		form:     NewFormController(svc),
		def:      def,
	}
	for _, l := range domain.Languages {
		store := NewCollectionStore()
		c.sessions[l] = &Session{
			Catalog: NewCatalogService(svc, cache, cacheTTL, store, conv, l, includeUnavailable),
			Media:   NewMediaManager(svc, store, conv),
			stale:   true,
		}
	}
	return c
}

// Session returns the session for lang, falling back to the default language.
func (c *Console) Session(lang domain.Lang) *Session {
	if s, ok := c.sessions[lang]; ok {
		return s
	}
	return c.sessions[c.def]
}

func (c *Console) FormState() (FormState, error) { return c.form.State() }

func (c *Console) others(lang domain.Lang) []*Session {
	out := make([]*Session, 0, len(c.sessions)-1)
	for _, l := range domain.Languages {
		if l != lang {
			out = append(out, c.sessions[l])
		}
	}
	return out
}

// Warm loads the default language collection.
func (c *Console) Warm(ctx context.Context) error {
	return c.Session(c.def).ensure(ctx)
}

func (c *Console) List(ctx context.Context, lang domain.Lang, spec domain.FilterSpec) ([]domain.DisplayOffer, error) {
	s := c.Session(lang)
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.Catalog.Query(spec), nil
}

func (c *Console) Get(ctx context.Context, lang domain.Lang, id domain.OfferID) (domain.DisplayOffer, error) {
	s := c.Session(lang)
	if err := s.ensure(ctx); err != nil {
		return domain.DisplayOffer{}, err
	}
	return s.Catalog.Get(id)
}

// Reload refetches lang from the service, bypassing the cache.
func (c *Console) Reload(ctx context.Context, lang domain.Lang) (int, error) {
	s := c.Session(lang)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Catalog.Reload(ctx); err != nil {
		return 0, err
	}
	s.stale = false
	return s.Catalog.Store().Len(), nil
}

// Create submits a draft through the shared form and adds the result to
// every collection already loaded.
func (c *Console) Create(ctx context.Context, lang domain.Lang, d domain.Draft, main *media.Pending, gallery []media.Pending) (domain.DisplayOffer, error) {
	created, err := c.form.Submit(ctx, d, main, gallery)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	var out domain.DisplayOffer
	for _, l := range domain.Languages {
		disp := c.sessions[l].Catalog.AddCreated(ctx, created)
		if l == c.Session(lang).Catalog.Lang() {
			out = disp
		}
	}
	return out, nil
}

// Update diffs fields and image edits against the stored offer and sends
// the result. Nothing is sent when the diff is empty.
func (c *Console) Update(ctx context.Context, lang domain.Lang, id domain.OfferID, fields map[string]string,
	mainImage MainImageEdit, gallery GalleryEdit) (domain.DisplayOffer, error) {
	s := c.Session(lang)
	if err := s.ensure(ctx); err != nil {
		return domain.DisplayOffer{}, err
	}
	original, err := s.Catalog.Get(id)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	e := EditsFromFields(original, fields)
	e.MainImage, e.Gallery = mainImage, gallery

	p, err := BuildDiff(original, e)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	if p.Empty() {
		log.Debug().Str("offer_id", string(id)).Msg("update without changes")
		return original, nil
	}
	d, err := s.Media.Send(ctx, p, s.Catalog.Lang())
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	s.Catalog.Updated(ctx)
	for _, o := range c.others(s.Catalog.Lang()) {
		o.markStale()
	}
	return d, nil
}

func (c *Console) Delete(ctx context.Context, lang domain.Lang, id domain.OfferID) error {
	s := c.Session(lang)
	if err := s.Catalog.Delete(ctx, id); err != nil {
		return err
	}
	for _, o := range c.others(s.Catalog.Lang()) {
		o.Catalog.Store().Remove(id)
	}
	return nil
}

func (c *Console) SetAvailability(ctx context.Context, lang domain.Lang, id domain.OfferID, available bool) (domain.DisplayOffer, error) {
	s := c.Session(lang)
	d, err := s.Catalog.SetAvailability(ctx, id, available)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	for _, o := range c.others(s.Catalog.Lang()) {
		o.markStale()
	}
	return d, nil
}

// EditsFromFields builds edits from a partial set of wire field keys
// (title_fr, stars, ...). A language block is edited as a whole, so keys
// left out of an edited block keep their original text.
func EditsFromFields(original domain.DisplayOffer, fields map[string]string) Edits {
	e := Edits{}
	for _, lang := range domain.Languages {
		block := originalText(original, lang)
		edited := false
		for _, r := range textRules {
			v, ok := fields[FieldKey(r.key, lang)]
			if !ok {
				continue
			}
			setText(&block, r.key, v)
			edited = true
		}
		if edited {
			if e.Content == nil {
				e.Content = map[domain.Lang]domain.LocalizedText{}
			}
			e.Content[lang] = block
		}
	}
	if v, ok := fields["stars"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			n = 0 // reported by the range rule
		}
		e.Stars = &n
	}
	if v, ok := fields["duration"]; ok {
		e.Duration = &v
	}
	return e
}

func setText(t *domain.LocalizedText, key, v string) {
	switch key {
	case "title":
		t.Title = v
	case "destination":
		t.Destination = v
	case "shortDescription":
		t.ShortDescription = v
	case "bigDescription":
		t.BigDescription = v
	}
}
