package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
)

// CollectionStore owns the session's list of display offers.
// Every write installs a new slice, so a slice returned by All stays valid
// (and unchanged) for as long as the caller holds it.
type CollectionStore struct {
	mu     sync.RWMutex
	offers []domain.DisplayOffer
	index  map[domain.OfferID]int
}

func NewCollectionStore() *CollectionStore {
	return &CollectionStore{index: map[domain.OfferID]int{}}
}

// Replace swaps the whole collection. A repeated id keeps the position of
// its first occurrence and the value of its last.
func (s *CollectionStore) Replace(offers []domain.DisplayOffer) {
	next := make([]domain.DisplayOffer, 0, len(offers))
	index := make(map[domain.OfferID]int, len(offers))
	for _, o := range offers {
		if i, dup := index[o.ID]; dup {
			log.Warn().Str("offer_id", string(o.ID)).Msg("duplicate offer id in collection; keeping last")
			next[i] = o
			continue
		}
		index[o.ID] = len(next)
		next = append(next, o)
	}

	s.mu.Lock()
	s.offers, s.index = next, index
	s.mu.Unlock()
}

// All returns the current collection in order. Callers must not modify it.
func (s *CollectionStore) All() []domain.DisplayOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offers
}

func (s *CollectionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}

// ByID looks an offer up by canonical id.
func (s *CollectionStore) ByID(id domain.OfferID) (domain.DisplayOffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.DisplayOffer{}, false
	}
	return s.offers[i], true
}

// Upsert replaces the offer with the same id in place, or appends it.
func (s *CollectionStore) Upsert(o domain.DisplayOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.DisplayOffer, len(s.offers), len(s.offers)+1)
	copy(next, s.offers)
	if i, ok := s.index[o.ID]; ok {
		next[i] = o
		s.offers = next
		return
	}
	index := cloneIndex(s.index)
	index[o.ID] = len(next)
	s.offers, s.index = append(next, o), index
}

// Remove deletes the offer with id and reports whether it was present.
func (s *CollectionStore) Remove(id domain.OfferID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	next := make([]domain.DisplayOffer, 0, len(s.offers)-1)
	next = append(next, s.offers[:i]...)
	next = append(next, s.offers[i+1:]...)

	index := make(map[domain.OfferID]int, len(next))
	for j, o := range next {
		index[o.ID] = j
	}
	s.offers, s.index = next, index
	return true
}

func cloneIndex(in map[domain.OfferID]int) map[domain.OfferID]int {
	out := make(map[domain.OfferID]int, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
