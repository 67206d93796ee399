package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	server "offer_console/internal/adapters/http_server"
	"offer_console/internal/app"
	"offer_console/internal/domain"
	"offer_console/internal/media"
)

// memService is an in-memory Offer Service.
type memService struct {
	mu      sync.Mutex
	offers  []domain.Offer
	nextID  int
	failAll string
	updates []domain.UpdatePayload
}

func (m *memService) List(ctx context.Context, lang domain.Lang, inc bool) ([]domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Offer(nil), m.offers...), nil
}

func (m *memService) Create(ctx context.Context, req domain.CreateRequest) (domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != "" {
		return domain.Offer{}, &domain.TransportError{Status: 500, Message: m.failAll}
	}
	m.nextID++
	o := domain.Offer{
		ID:      domain.OfferID(strconv.Itoa(100 + m.nextID)),
		TitleEN: req.Fields["title_en"], TitleFR: req.Fields["title_fr"],
		DestinationEN: req.Fields["destination_en"], DestinationFR: req.Fields["destination_fr"],
		Stars: 4, Duration: 7, Available: true,
	}
	if req.MainImage != nil {
		o.MainImage = "uploads/" + req.MainImage.Filename
	}
	m.offers = append(m.offers, o)
	return o, nil
}

func (m *memService) Update(ctx context.Context, p domain.UpdatePayload) (domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, p)
	for i, o := range m.offers {
		if o.ID == p.ID {
			if v, ok := p.Fields["title_en"]; ok {
				o.TitleEN = v
			}
			if _, ok := p.MainImage.(domain.RemoveMainImage); ok {
				o.MainImage = ""
			}
			m.offers[i] = o
			return o, nil
		}
	}
	return domain.Offer{}, &domain.TransportError{Status: 404, Message: "no such offer"}
}

func (m *memService) Delete(ctx context.Context, id domain.OfferID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.offers {
		if o.ID == id {
			m.offers = append(m.offers[:i], m.offers[i+1:]...)
			return nil
		}
	}
	return &domain.TransportError{Status: 404, Message: "no such offer"}
}

func (m *memService) SetAvailability(ctx context.Context, id domain.OfferID, available bool) (domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.offers {
		if o.ID == id {
			o.Available = available
			m.offers[i] = o
			return o, nil
		}
	}
	return domain.Offer{}, &domain.TransportError{Status: 404, Message: "no such offer"}
}

func seedOffer(id domain.OfferID, title string, stars int, created time.Time) domain.Offer {
	return domain.Offer{
		ID: id, TitleEN: title, TitleFR: title + " (fr)", DestinationEN: "Lisbon", DestinationFR: "Lisbonne",
		ShortDescriptionEN: "A short trip.", BigDescriptionEN: strings.Repeat("Long text. ", 6),
		Stars: stars, Duration: 5, Available: true, CreatedAt: &created, MainImage: "uploads/main.jpg",
		Images: []string{"uploads/a.jpg", "uploads/b.jpg"},
	}
}

func newTestServer(t *testing.T, svc *memService) *httptest.Server {
	t.Helper()
	console := app.NewConsole(svc, nil, time.Minute, app.NewConverter("https://img.example.com/"), domain.LangEN, true)
	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{C: console})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

type part struct {
	field, filename, ctype string
	data                   []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.ctype)
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = pw.Write(f.data)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"title_en": "Lisbon Weekend", "title_fr": "Week-end à Lisbonne",
		"destination_en": "Lisbon", "destination_fr": "Lisbonne",
		"shortDescription_en": "Three days by the Tagus.", "shortDescription_fr": "Trois jours au bord du Tage.",
		"bigDescription_en":   strings.Repeat("Trams, pastries and fado at night. ", 2),
		"bigDescription_fr":   strings.Repeat("Tramways, pâtisseries et fado le soir. ", 2),
		"stars":               "4",
		"duration":            "3",
	}
}

var jpeg = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{1}, 64)...)

func do(t *testing.T, method, url string, body *bytes.Buffer, ctype string) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		rdr = bytes.NewReader(body.Bytes())
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, url, rdr)
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeProblem(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	var p map[string]any
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestListOffers_FilterSortAndETag(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &memService{offers: []domain.Offer{
		seedOffer("1", "Old Lisbon", 5, base),
		seedOffer("2", "New Lisbon", 3, base.Add(48*time.Hour)),
		seedOffer("3", "Porto", 4, base.Add(24*time.Hour)),
	}}
	ts := newTestServer(t, svc)

	res := do(t, "GET", ts.URL+"/v1/offers?search=lisbon&sortBy=rating-high", nil, "")
	if res.StatusCode != 200 {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Offers []domain.DisplayOffer `json:"offers"`
		Count  int                   `json:"count"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if body.Count != 3 || body.Offers[0].ID != "1" {
		// search matches destination too, so all three are Lisbon offers
		t.Fatalf("unexpected list: %+v", body)
	}
	if body.Offers[0].Image != "https://img.example.com/uploads/main.jpg" {
		t.Fatalf("image not resolved: %q", body.Offers[0].Image)
	}

	etag := res.Header.Get("ETag")
	req, _ := http.NewRequest("GET", ts.URL+"/v1/offers?search=lisbon&sortBy=rating-high", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("want 304, got %d", res2.StatusCode)
	}
}

func TestListOffers_FrenchByHeader(t *testing.T) {
	svc := &memService{offers: []domain.Offer{seedOffer("1", "Lisbon", 5, time.Now())}}
	ts := newTestServer(t, svc)

	req, _ := http.NewRequest("GET", ts.URL+"/v1/offers", nil)
	req.Header.Set("Accept-Language", "fr-CA,fr;q=0.9")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.Header.Get("Content-Language") != "fr" {
		t.Fatalf("content-language = %q", res.Header.Get("Content-Language"))
	}
	var body struct {
		Offers []domain.DisplayOffer `json:"offers"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if body.Offers[0].Title != "Lisbon (fr)" {
		t.Fatalf("unexpected title %q", body.Offers[0].Title)
	}
}

func TestCreateOffer_Success(t *testing.T) {
	svc := &memService{}
	ts := newTestServer(t, svc)

	body, ctype := multipartBody(t, validFields(),
		part{"mainImage", "cover.jpg", "image/jpeg", jpeg},
		part{"images", "one.jpg", "image/jpeg", jpeg},
	)
	res := do(t, "POST", ts.URL+"/v1/offers", body, ctype)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %v", res.StatusCode, decodeProblem(t, res))
	}
	var o domain.DisplayOffer
	_ = json.NewDecoder(res.Body).Decode(&o)
	if o.Title != "Lisbon Weekend" || !strings.HasSuffix(o.Image, ".jpg") {
		t.Fatalf("unexpected offer: %+v", o)
	}

	res = do(t, "GET", ts.URL+"/v1/offers/"+string(o.ID), nil, "")
	if res.StatusCode != 200 {
		t.Fatalf("created offer not in collection: %d", res.StatusCode)
	}
}

func TestCreateOffer_ValidationErrors(t *testing.T) {
	svc := &memService{}
	ts := newTestServer(t, svc)

	f := validFields()
	delete(f, "title_fr")
	f["stars"] = "9"
	body, ctype := multipartBody(t, f, part{"mainImage", "anim.gif", "image/gif", []byte("GIF89a....")})
	res := do(t, "POST", ts.URL+"/v1/offers", body, ctype)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", res.StatusCode)
	}
	p := decodeProblem(t, res)
	errs, _ := p["errors"].(map[string]any)
	for _, k := range []string{"title_fr", "stars", "mainImage"} {
		if _, ok := errs[k]; !ok {
			t.Fatalf("missing %s in %v", k, errs)
		}
	}
	if len(svc.offers) != 0 {
		t.Fatal("invalid form must not reach the service")
	}
}

func TestCreateOffer_OversizedUntypedImageIsTooLarge(t *testing.T) {
	svc := &memService{}
	ts := newTestServer(t, svc)

	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0xAB}, int(media.MaxFileSize))...)
	body, ctype := multipartBody(t, validFields(), part{"mainImage", "scan", "application/octet-stream", data})
	res := do(t, "POST", ts.URL+"/v1/offers", body, ctype)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", res.StatusCode)
	}
	errs, _ := decodeProblem(t, res)["errors"].(map[string]any)
	msg := fmt.Sprint(errs["mainImage"])
	if !strings.Contains(msg, "10 MiB") || strings.Contains(msg, "unsupported") {
		t.Fatalf("want size error for mainImage, got %q", msg)
	}
	if len(svc.offers) != 0 {
		t.Fatal("invalid form must not reach the service")
	}
}

func TestCreateOffer_BackendFailure(t *testing.T) {
	svc := &memService{failAll: "storage quota exceeded"}
	ts := newTestServer(t, svc)

	body, ctype := multipartBody(t, validFields())
	res := do(t, "POST", ts.URL+"/v1/offers", body, ctype)
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502, got %d", res.StatusCode)
	}
	if p := decodeProblem(t, res); p["detail"] != "storage quota exceeded" {
		t.Fatalf("unexpected detail: %v", p["detail"])
	}
}

func TestUpdateOffer_DiffAndConflict(t *testing.T) {
	svc := &memService{offers: []domain.Offer{seedOffer("8", "Lisbon", 5, time.Now())}}
	ts := newTestServer(t, svc)

	body, ctype := multipartBody(t, map[string]string{"title_en": "Lisbon Again", "removeMainImage": "true"})
	res := do(t, "PATCH", ts.URL+"/v1/offers/8", body, ctype)
	if res.StatusCode != 200 {
		t.Fatalf("status %d: %v", res.StatusCode, decodeProblem(t, res))
	}
	var o domain.DisplayOffer
	_ = json.NewDecoder(res.Body).Decode(&o)
	if o.Title != "Lisbon Again" || o.Image != "" {
		t.Fatalf("unexpected offer: %+v", o)
	}
	if len(svc.updates) != 1 || len(svc.updates[0].Fields) != 1 {
		t.Fatalf("unexpected payloads: %+v", svc.updates)
	}

	body, ctype = multipartBody(t, map[string]string{"replaceAllGallery": "true", "removeGalleryImages": "[0]"})
	res = do(t, "PATCH", ts.URL+"/v1/offers/8", body, ctype)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for conflicting gallery ops, got %d", res.StatusCode)
	}
}

func TestUpdateOffer_BadIndexIsValidation(t *testing.T) {
	svc := &memService{offers: []domain.Offer{seedOffer("8", "Lisbon", 5, time.Now())}}
	ts := newTestServer(t, svc)

	body, ctype := multipartBody(t, map[string]string{"removeGalleryImages": "5"})
	res := do(t, "PATCH", ts.URL+"/v1/offers/8", body, ctype)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", res.StatusCode)
	}
	if len(svc.updates) != 0 {
		t.Fatal("invalid edit must not reach the service")
	}
}

func TestDeleteAndAvailability(t *testing.T) {
	svc := &memService{offers: []domain.Offer{
		seedOffer("1", "Lisbon", 5, time.Now()),
		seedOffer("2", "Porto", 4, time.Now()),
	}}
	ts := newTestServer(t, svc)

	if res := do(t, "DELETE", ts.URL+"/v1/offers/1", nil, ""); res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	if res := do(t, "GET", ts.URL+"/v1/offers/1", nil, ""); res.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 after delete, got %d", res.StatusCode)
	}

	res := do(t, "PUT", ts.URL+"/v1/offers/2/availability", bytes.NewBufferString(`{"available":false}`), "application/json")
	if res.StatusCode != 200 {
		t.Fatalf("availability status %d", res.StatusCode)
	}
	var o domain.DisplayOffer
	_ = json.NewDecoder(res.Body).Decode(&o)
	if o.Available {
		t.Fatal("offer should be unavailable")
	}

	res = do(t, "PUT", ts.URL+"/v1/offers/2/availability", bytes.NewBufferString(`{}`), "application/json")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for missing flag, got %d", res.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &memService{})
	if res := do(t, "GET", ts.URL+"/healthz", nil, ""); res.StatusCode != 200 {
		t.Fatalf("healthz status %d", res.StatusCode)
	}
}
