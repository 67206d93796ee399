package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
)

// CatalogService loads the collection for a session and applies the
// single-record writes (create, availability, delete) to it.
type CatalogService struct {
	svc                domain.OfferService
	cache              domain.Cache
	cacheTTL           time.Duration
	store              *CollectionStore
	conv               *Converter
	lang               domain.Lang
	includeUnavailable bool
}

func NewCatalogService(svc domain.OfferService, cache domain.Cache, ttl time.Duration,
	store *CollectionStore, conv *Converter, lang domain.Lang, includeUnavailable bool) *CatalogService {
	return &CatalogService{
		svc:                svc,
		cache:              cache,
		cacheTTL:           ttl,
		store:              store,
		conv:               conv,
		lang:               lang,
		includeUnavailable: includeUnavailable,
	}
}

func (s *CatalogService) Lang() domain.Lang { return s.lang }

func (s *CatalogService) Store() *CollectionStore { return s.store }

func listKey(lang domain.Lang, includeUnavailable bool) string {
	return fmt.Sprintf("offers:%s:%t", lang, includeUnavailable)
}

// Load fetches the list (cache first) and replaces the collection.
func (s *CatalogService) Load(ctx context.Context) error {
	offers, err := s.list(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.store.Replace(s.conv.ToDisplayAll(offers, s.lang))
	log.Info().Str("lang", string(s.lang)).Int("count", len(offers)).Msg("offer collection loaded")
	return nil
}

// Reload drops the cached list before loading.
func (s *CatalogService) Reload(ctx context.Context) error {
	s.invalidate(ctx)
	return s.Load(ctx)
}

func (s *CatalogService) list(ctx context.Context) ([]domain.Offer, error) {
	key := listKey(s.lang, s.includeUnavailable)
	var out []domain.Offer
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	out, err := s.svc.List(ctx, s.lang, s.includeUnavailable)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// Query derives a filtered, sorted view of the current collection.
func (s *CatalogService) Query(spec domain.FilterSpec) []domain.DisplayOffer {
	return ApplyFilter(s.store.All(), spec)
}

// Get returns one offer from the collection or domain.ErrNotFound.
func (s *CatalogService) Get(id domain.OfferID) (domain.DisplayOffer, error) {
	o, ok := s.store.ByID(id)
	if !ok {
		return domain.DisplayOffer{}, domain.ErrNotFound
	}
	return o, nil
}

// AddCreated merges an offer returned by the create flow.
func (s *CatalogService) AddCreated(ctx context.Context, o domain.Offer) domain.DisplayOffer {
	d := s.conv.ToDisplay(o, s.lang)
	s.store.Upsert(d)
	s.invalidate(ctx)
	return d
}

// Updated is called after a successful edit so cached lists are not reused.
func (s *CatalogService) Updated(ctx context.Context) { s.invalidate(ctx) }

func (s *CatalogService) Delete(ctx context.Context, id domain.OfferID) error {
	if err := s.svc.Delete(ctx, id); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.store.Remove(id)
	s.invalidate(ctx)
	log.Info().Str("offer_id", string(id)).Msg("offer deleted")
	return nil
}

func (s *CatalogService) SetAvailability(ctx context.Context, id domain.OfferID, available bool) (domain.DisplayOffer, error) {
	o, err := s.svc.SetAvailability(ctx, id, available)
	if err != nil {
		return domain.DisplayOffer{}, err
	}
	if ctx.Err() != nil {
		return domain.DisplayOffer{}, ctx.Err()
	}
	d := s.conv.ToDisplay(o, s.lang)
	if !available && !s.includeUnavailable {
		s.store.Remove(id)
	} else {
		s.store.Upsert(d)
	}
	s.invalidate(ctx)
	return d, nil
}

// invalidate drops every cached list variant; any write can change all of them.
func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, l := range domain.Languages {
		for _, inc := range []bool{false, true} {
			_ = s.cache.Del(ctx, listKey(l, inc))
		}
	}
}
