package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"offer_console/internal/app"
	"offer_console/internal/domain"
)

func fullOffer(id domain.OfferID) domain.Offer {
	d := validDraft()
	en, fr := d.Content[domain.LangEN], d.Content[domain.LangFR]
	return domain.Offer{
		ID:      id,
		TitleEN: en.Title, DestinationEN: en.Destination, ShortDescriptionEN: en.ShortDescription, BigDescriptionEN: en.BigDescription,
		TitleFR: fr.Title, DestinationFR: fr.Destination, ShortDescriptionFR: fr.ShortDescription, BigDescriptionFR: fr.BigDescription,
		Stars: 4, Duration: 10, Available: true,
	}
}

func newConsole(svc *fakeService) *app.Console {
	return app.NewConsole(svc, nil, time.Minute, app.NewConverter("https://img.example.com"), domain.LangEN, false)
}

func TestConsole_LoadsEachLanguageOnce(t *testing.T) {
	svc := &fakeService{listOut: []domain.Offer{fullOffer("1")}}
	c := newConsole(svc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.List(ctx, domain.LangEN, domain.FilterSpec{}); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	got, err := c.List(ctx, domain.LangFR, domain.FilterSpec{})
	if err != nil {
		t.Fatalf("list fr: %v", err)
	}
	if svc.listCalls != 2 {
		t.Fatalf("want one load per language, got %d", svc.listCalls)
	}
	if len(got) != 1 || got[0].Title != "Aventure à Bali" || got[0].Language != domain.LangFR {
		t.Fatalf("unexpected fr view: %+v", got)
	}
}

func TestConsole_UnknownLanguageFallsBackToDefault(t *testing.T) {
	c := newConsole(&fakeService{})
	if got := c.Session("de").Catalog.Lang(); got != domain.LangEN {
		t.Fatalf("fallback lang = %s", got)
	}
}

func TestConsole_CreateReachesEveryCollection(t *testing.T) {
	svc := &fakeService{createOut: fullOffer("99")}
	c := newConsole(svc)
	ctx := context.Background()
	_ = c.Warm(ctx)

	d, err := c.Create(ctx, domain.LangFR, validDraft(), nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Language != domain.LangFR || d.ID != "99" {
		t.Fatalf("unexpected display: %+v", d)
	}
	for _, l := range domain.Languages {
		if _, err := c.Get(ctx, l, "99"); err != nil {
			t.Fatalf("%s collection missing created offer: %v", l, err)
		}
	}
	if st, _ := c.FormState(); st != app.FormSucceeded {
		t.Fatalf("form state = %s", st)
	}
}

func TestConsole_UpdateSendsOnlyChangedFields(t *testing.T) {
	svc := &fakeService{listOut: []domain.Offer{fullOffer("5")}}
	c := newConsole(svc)
	ctx := context.Background()
	if _, err := c.List(ctx, domain.LangFR, domain.FilterSpec{}); err != nil {
		t.Fatalf("list: %v", err)
	}

	updated := fullOffer("5")
	updated.TitleFR = "Bali autrement"
	svc.updateOut = updated

	d, err := c.Update(ctx, domain.LangEN, "5", map[string]string{"title_fr": "Bali autrement", "stars": "4"},
		app.MainImageEdit{}, app.GalleryEdit{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(svc.updateIn) != 1 {
		t.Fatalf("want one update call, got %d", len(svc.updateIn))
	}
	if f := svc.updateIn[0].Fields; len(f) != 1 || f["title_fr"] != "Bali autrement" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if d.Translations[domain.LangFR].Title != "Bali autrement" {
		t.Fatalf("display not refreshed: %+v", d.Translations)
	}

	// the French collection was written from another language and reloads
	svc.listOut = []domain.Offer{updated}
	calls := svc.listCalls
	got, err := c.Get(ctx, domain.LangFR, "5")
	if err != nil || got.Title != "Bali autrement" {
		t.Fatalf("fr view after update: %+v %v", got, err)
	}
	if svc.listCalls != calls+1 {
		t.Fatalf("expected fr reload, calls %d -> %d", calls, svc.listCalls)
	}
}

func TestConsole_UpdateWithoutChangesSkipsService(t *testing.T) {
	svc := &fakeService{listOut: []domain.Offer{fullOffer("5")}}
	c := newConsole(svc)

	orig := fullOffer("5")
	d, err := c.Update(context.Background(), domain.LangEN, "5",
		map[string]string{"title_en": orig.TitleEN, "duration": "10"}, app.MainImageEdit{}, app.GalleryEdit{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(svc.updateIn) != 0 || d.ID != "5" {
		t.Fatalf("no call expected, got %d (%+v)", len(svc.updateIn), d)
	}
}

func TestConsole_UpdateRejectsBadStars(t *testing.T) {
	svc := &fakeService{listOut: []domain.Offer{fullOffer("5")}}
	c := newConsole(svc)

	_, err := c.Update(context.Background(), domain.LangEN, "5", map[string]string{"stars": "lots"},
		app.MainImageEdit{}, app.GalleryEdit{})
	fe := fieldErrors(t, err)
	if _, ok := fe["stars"]; !ok || len(fe) != 1 {
		t.Fatalf("want only stars error, got %v", fe)
	}
	if len(svc.updateIn) != 0 {
		t.Fatal("invalid edit must not reach the service")
	}
}

func TestConsole_UpdateUnknownOffer(t *testing.T) {
	c := newConsole(&fakeService{})
	_, err := c.Update(context.Background(), domain.LangEN, "404", nil, app.MainImageEdit{}, app.GalleryEdit{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConsole_DeleteRemovesFromAllLanguages(t *testing.T) {
	svc := &fakeService{listOut: []domain.Offer{fullOffer("1"), fullOffer("2")}}
	c := newConsole(svc)
	ctx := context.Background()
	for _, l := range domain.Languages {
		_, _ = c.List(ctx, l, domain.FilterSpec{})
	}

	if err := c.Delete(ctx, domain.LangEN, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, l := range domain.Languages {
		if _, err := c.Get(ctx, l, "1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s still has deleted offer", l)
		}
	}
}

func TestEditsFromFields_KeepsUntouchedKeysOfEditedBlock(t *testing.T) {
	orig := editableOffer()
	e := app.EditsFromFields(orig, map[string]string{"destination_en": "Ubud", "duration": "12"})

	en, ok := e.Content[domain.LangEN]
	if !ok {
		t.Fatal("en block should be edited")
	}
	if en.Destination != "Ubud" || en.Title != orig.Translations[domain.LangEN].Title {
		t.Fatalf("unexpected block: %+v", en)
	}
	if _, ok := e.Content[domain.LangFR]; ok {
		t.Fatal("fr block should be untouched")
	}
	if e.Duration == nil || *e.Duration != "12" || e.Stars != nil {
		t.Fatalf("unexpected scalars: %+v", e)
	}
}
