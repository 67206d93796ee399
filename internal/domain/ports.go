package domain

import "context"

// OfferService is the external collaborator that persists offers.
// Every call requires an authenticated session handled by the adapter.
type OfferService interface {
	List(ctx context.Context, lang Lang, includeUnavailable bool) ([]Offer, error)
	Create(ctx context.Context, req CreateRequest) (Offer, error)
	Update(ctx context.Context, p UpdatePayload) (Offer, error)
	Delete(ctx context.Context, id OfferID) error
	SetAvailability(ctx context.Context, id OfferID, available bool) (Offer, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
