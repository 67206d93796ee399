package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"offer_console/internal/domain"
)

// ---- fakes ----

type fakeService struct {
	mu sync.Mutex

	listOut   []domain.Offer
	listCalls int

	createIn    []domain.CreateRequest
	createOut   domain.Offer
	createErr   error
	createBlock chan struct{} // when set, Create waits on it

	updateIn  []domain.UpdatePayload
	updateOut domain.Offer
	updateErr error

	deleted   []domain.OfferID
	deleteErr error

	availOut domain.Offer
	availErr error
}

var _ domain.OfferService = (*fakeService)(nil)

func (f *fakeService) List(ctx context.Context, lang domain.Lang, inc bool) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]domain.Offer(nil), f.listOut...), nil
}

func (f *fakeService) Create(ctx context.Context, req domain.CreateRequest) (domain.Offer, error) {
	f.mu.Lock()
	f.createIn = append(f.createIn, req)
	block := f.createBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.createOut, f.createErr
}

func (f *fakeService) Update(ctx context.Context, p domain.UpdatePayload) (domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateIn = append(f.updateIn, p)
	return f.updateOut, f.updateErr
}

func (f *fakeService) Delete(ctx context.Context, id domain.OfferID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeService) SetAvailability(ctx context.Context, id domain.OfferID, available bool) (domain.Offer, error) {
	o := f.availOut
	o.ID, o.Available = id, available
	return o, f.availErr
}

func (f *fakeService) creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createIn)
}

// fakeCache round-trips through JSON like the real adapters do.
type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	c.store[key] = b
	return err
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- builders ----

func validDraft() domain.Draft {
	d := domain.NewDraft()
	d.Content[domain.LangEN] = domain.LocalizedText{
		Title:            "Bali Adventure",
		Destination:      "Bali",
		ShortDescription: "Ten days of temples and beaches.",
		BigDescription:   strings.Repeat("Rice terraces, volcano treks and surf lessons. ", 2),
	}
	d.Content[domain.LangFR] = domain.LocalizedText{
		Title:            "Aventure à Bali",
		Destination:      "Bali",
		ShortDescription: "Dix jours de temples et de plages.",
		BigDescription:   strings.Repeat("Rizières, randonnées sur le volcan et cours de surf. ", 2),
	}
	d.Duration = "10"
	d.Stars = 4
	return d
}

func ptr[T any](v T) *T { return &v }
