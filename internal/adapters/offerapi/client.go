// internal/adapters/offerapi/client.go
package offerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"offer_console/internal/adapters/observability"
	"offer_console/internal/domain"
)

// Client talks to the external Offer Service. It makes exactly one attempt
// per call; retrying is the caller's decision.
type Client struct {
	base  string
	hc    *http.Client
	token string
	rl    *rate.Limiter
}

func New(base, token string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("offer service base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("offer service base URL: %w", err)
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: 60 * time.Second}, // uploads can be large
		token: token,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var _ domain.OfferService = (*Client)(nil)

// ---- Public API ----

func (c *Client) List(ctx context.Context, lang domain.Lang, includeUnavailable bool) ([]domain.Offer, error) {
	q := url.Values{}
	q.Set("lang", string(lang))
	if includeUnavailable {
		q.Set("includeUnavailable", "true")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "list", http.MethodGet, c.base+"/offers?"+q.Encode(), nil, "", &raw); err != nil {
		return nil, err
	}
	return decodeList(raw)
}

func (c *Client) Create(ctx context.Context, req domain.CreateRequest) (domain.Offer, error) {
	var mainImages []domain.Upload
	if req.MainImage != nil {
		mainImages = []domain.Upload{*req.MainImage}
	}
	body, ctype, err := buildMultipart(req.Fields, mainImages, req.Images)
	if err != nil {
		return domain.Offer{}, err
	}
	return c.doOffer(ctx, "create", http.MethodPost, c.base+"/offers", body, ctype)
}

func (c *Client) Update(ctx context.Context, p domain.UpdatePayload) (domain.Offer, error) {
	fields := make(map[string]string, len(p.Fields)+3)
	for k, v := range p.Fields {
		fields[k] = v
	}

	var mainImages, gallery []domain.Upload
	switch op := p.MainImage.(type) {
	case domain.ReplaceMainImage:
		mainImages = []domain.Upload{op.Image}
	case domain.RemoveMainImage:
		fields["removeMainImage"] = "true"
	}
	switch op := p.Gallery.(type) {
	case domain.ReplaceGallery:
		fields["replaceAllGallery"] = "true"
		gallery = op.Images
	case domain.PatchGallery:
		if len(op.Remove) > 0 {
			b, _ := json.Marshal(op.Remove)
			fields["removeGalleryImages"] = string(b)
		}
		if len(op.Add) > 0 {
			fields["addToGallery"] = "true"
			gallery = op.Add
		}
	}

	body, ctype, err := buildMultipart(fields, mainImages, gallery)
	if err != nil {
		return domain.Offer{}, err
	}
	return c.doOffer(ctx, "update", http.MethodPatch, c.offerURL(p.ID), body, ctype)
}

func (c *Client) Delete(ctx context.Context, id domain.OfferID) error {
	return c.do(ctx, "delete", http.MethodDelete, c.offerURL(id), nil, "", nil)
}

func (c *Client) SetAvailability(ctx context.Context, id domain.OfferID, available bool) (domain.Offer, error) {
	b, _ := json.Marshal(map[string]bool{"available": available})
	return c.doOffer(ctx, "availability", http.MethodPatch, c.offerURL(id)+"/availability", b, "application/json")
}

// ---- Internals ----

func (c *Client) offerURL(id domain.OfferID) string {
	return c.base + "/offers/" + url.PathEscape(string(id))
}

func (c *Client) doOffer(ctx context.Context, endpoint, method, u string, body []byte, ctype string) (domain.Offer, error) {
	var raw json.RawMessage
	if err := c.do(ctx, endpoint, method, u, body, ctype, &raw); err != nil {
		return domain.Offer{}, err
	}
	return decodeOffer(raw)
}

// do performs one rate-limited request and decodes a JSON body into out.
// Non-2xx responses become *domain.TransportError with the server's message.
func (c *Client) do(ctx context.Context, endpoint, method, u string, body []byte, ctype string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "offer-console/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("offer_api", endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("offer_api", endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.TransportError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// errorMessage prefers the structured {"message": "..."} body.
func errorMessage(status int, body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return http.StatusText(status)
}

// decodeList accepts a bare array or an {"offers": [...]} / {"data": [...]} envelope.
func decodeList(raw json.RawMessage) ([]domain.Offer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []domain.Offer{}, nil
	}
	var out []domain.Offer
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, &domain.TransportError{Message: "malformed offer list: " + err.Error()}
		}
		return out, nil
	}
	var env struct {
		Offers []domain.Offer `json:"offers"`
		Data   []domain.Offer `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransportError{Message: "malformed offer list: " + err.Error()}
	}
	if env.Offers != nil {
		return env.Offers, nil
	}
	if env.Data != nil {
		return env.Data, nil
	}
	return []domain.Offer{}, nil
}

// decodeOffer accepts a bare offer or an {"offer": {...}} / {"data": {...}} envelope.
func decodeOffer(raw json.RawMessage) (domain.Offer, error) {
	var env struct {
		Offer *domain.Offer `json:"offer"`
		Data  *domain.Offer `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Offer != nil {
			return *env.Offer, nil
		}
		if env.Data != nil {
			return *env.Data, nil
		}
	}
	var o domain.Offer
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.Offer{}, &domain.TransportError{Message: "malformed offer: " + err.Error()}
	}
	if o.ID == "" {
		return domain.Offer{}, &domain.TransportError{Message: "offer without id in response"}
	}
	return o, nil
}

// buildMultipart writes fields in key order, then mainImage, then images.
func buildMultipart(fields map[string]string, mainImage, images []domain.Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	for _, u := range mainImage {
		if err := writeFile(w, "mainImage", u); err != nil {
			return nil, "", err
		}
	}
	for _, u := range images {
		if err := writeFile(w, "images", u); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, u domain.Upload) error {
	if len(u.Data) == 0 {
		return errors.New("empty upload " + u.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, u.Filename))
	h.Set("Content-Type", u.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(u.Data)
	return err
}
