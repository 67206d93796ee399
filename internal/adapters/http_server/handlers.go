// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"offer_console/internal/adapters/observability"
	"offer_console/internal/app"
	"offer_console/internal/domain"
	"offer_console/internal/media"
)

const (
	multipartMemory = 32 << 20
	// a full gallery batch plus a main image plus form fields
	maxUploadBody = (media.MaxGalleryBatch+1)*media.MaxFileSize + 1<<20
)

type Handlers struct{ C *app.Console }

type problem struct {
	Type   string             `json:"type"`
	Title  string             `json:"title"`
	Status int                `json:"status"`
	Detail string             `json:"detail,omitempty"`
	Errors domain.FieldErrors `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/offers", func(r chi.Router) {
		r.Get("/", h.listOffers)
		r.Post("/", h.createOffer)
		r.Post("/reload", h.reload)
		r.Get("/form", h.formState)
		r.Get("/{id}", h.getOffer)
		r.Patch("/{id}", h.updateOffer)
		r.Delete("/{id}", h.deleteOffer)
		r.Put("/{id}/availability", h.setAvailability)
	})
}

// requestLang prefers ?lang= over Accept-Language.
func requestLang(r *http.Request) domain.Lang {
	if l := r.URL.Query().Get("lang"); l != "" {
		return domain.ParseLang(l)
	}
	return domain.ParseLang(r.Header.Get("Accept-Language"))
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemFields(w, status, title, detail, nil)
}

func writeProblemFields(w http.ResponseWriter, status int, title, detail string, fields domain.FieldErrors) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Errors: fields}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps console errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		se *domain.SubmissionError
		te *domain.TransportError
	)
	switch {
	case errors.As(err, &ve):
		writeProblemFields(w, http.StatusUnprocessableEntity, "Validation Failed", "", ve.Fields)
	case errors.Is(err, domain.ErrConflictingEdit):
		writeProblem(w, http.StatusBadRequest, "Conflicting Edit", err.Error())
	case errors.Is(err, domain.ErrAlreadyInProgress):
		writeProblem(w, http.StatusConflict, "In Progress", "another submission is still running")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "offer not found")
	case errors.As(err, &se):
		writeProblem(w, http.StatusBadGateway, "Submission Failed", se.Message())
	case errors.As(err, &te):
		writeProblem(w, http.StatusBadGateway, "Offer Service Error", te.Message)
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "offer service did not answer in time")
	case errors.Is(err, context.Canceled):
		log.Debug().Str("path", r.URL.Path).Msg("client went away")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, lang domain.Lang, v any) {
	etag, body := calcETagAndBody(v)
	if status == http.StatusOK {
		// If client already has this version, short-circuit.
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	if lang != "" {
		w.Header().Set("Content-Language", string(lang))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

type listResponse struct {
	Offers   []domain.DisplayOffer `json:"offers"`
	Count    int                   `json:"count"`
	Language domain.Lang           `json:"language"`
}

func (h *Handlers) listOffers(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	out, err := h.C.List(r.Context(), lang, app.SpecFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lang, listResponse{Offers: out, Count: len(out), Language: lang})
}

func (h *Handlers) getOffer(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	o, err := h.C.Get(r.Context(), lang, domain.OfferID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lang, o)
}

func (h *Handlers) reload(w http.ResponseWriter, r *http.Request) {
	lang := requestLang(r)
	n, err := h.C.Reload(r.Context(), lang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lang, map[string]any{"count": n, "language": lang})
}

func (h *Handlers) formState(w http.ResponseWriter, r *http.Request) {
	st, err := h.C.FormState()
	resp := map[string]string{"state": st.String()}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, r, http.StatusOK, "", resp)
}

func (h *Handlers) createOffer(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	lang := requestLang(r)

	d := domain.NewDraft()
	for _, l := range domain.Languages {
		d.Content[l] = domain.LocalizedText{
			Title:            r.FormValue(app.FieldKey("title", l)),
			Destination:      r.FormValue(app.FieldKey("destination", l)),
			ShortDescription: r.FormValue(app.FieldKey("shortDescription", l)),
			BigDescription:   r.FormValue(app.FieldKey("bigDescription", l)),
		}
	}
	d.Duration = r.FormValue("duration")
	d.Stars, _ = strconv.Atoi(strings.TrimSpace(r.FormValue("stars"))) // 0 fails the range rule

	main, gallery, err := formImages(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.C.Create(r.Context(), lang, d, main, gallery)
	observability.ObserveSubmission("create", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/offers/"+string(o.ID))
	writeJSON(w, r, http.StatusCreated, lang, o)
}

func (h *Handlers) updateOffer(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	lang := requestLang(r)
	id := domain.OfferID(chi.URLParam(r, "id"))

	fields := map[string]string{}
	for _, l := range domain.Languages {
		for _, k := range []string{"title", "destination", "shortDescription", "bigDescription"} {
			key := app.FieldKey(k, l)
			if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
				fields[key] = vs[0]
			}
		}
	}
	for _, key := range []string{"stars", "duration"} {
		if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
			fields[key] = vs[0]
		}
	}

	main, images, err := formImages(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	remove, err := parseIndices(r.FormValue("removeGalleryImages"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid removeGalleryImages", err.Error())
		return
	}
	mainEdit := app.MainImageEdit{Replace: main, Remove: formBool(r, "removeMainImage")}
	galleryEdit := app.GalleryEdit{Replace: formBool(r, "replaceAllGallery"), Images: images, Remove: remove}

	o, err := h.C.Update(r.Context(), lang, id, fields, mainEdit, galleryEdit)
	observability.ObserveSubmission("update", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lang, o)
}

func (h *Handlers) deleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.C.Delete(r.Context(), requestLang(r), domain.OfferID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Available *bool `json:"available"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil || body.Available == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", `expected {"available": true|false}`)
		return
	}
	lang := requestLang(r)
	o, err := h.C.SetAvailability(r.Context(), lang, domain.OfferID(chi.URLParam(r, "id")), *body.Available)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lang, o)
}

// ---- multipart helpers ----

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Upload Too Large", "request body exceeds "+strconv.FormatInt(mbe.Limit, 10)+" bytes")
			return false
		}
		writeProblem(w, http.StatusBadRequest, "Invalid form", err.Error())
		return false
	}
	return true
}

// formImages encodes the mainImage and images parts. Oversized parts are
// not read; they come back size-only so validation reports them.
func formImages(r *http.Request) (*media.Pending, []media.Pending, error) {
	var main *media.Pending
	if fhs := r.MultipartForm.File["mainImage"]; len(fhs) > 0 {
		p, err := encodePart(fhs[0])
		if err != nil {
			return nil, nil, imageFieldError("mainImage", err)
		}
		main = &p
	}
	fhs := r.MultipartForm.File["images"]
	gallery := make([]media.Pending, 0, len(fhs))
	for _, fh := range fhs {
		p, err := encodePart(fh)
		if err != nil {
			return nil, nil, imageFieldError("additionalImages", err)
		}
		gallery = append(gallery, p)
	}
	return main, gallery, nil
}

func encodePart(fh *multipart.FileHeader) (media.Pending, error) {
	typ := fh.Header.Get("Content-Type")
	if typ == "application/octet-stream" {
		typ = "" // let the codec sniff it
	}
	p, err := media.Encode(media.File{
		Name: fh.Filename,
		Type: typ,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	})
	if err != nil {
		return media.Pending{}, err
	}
	observability.ObserveImage(p.Size)
	return p, nil
}

func imageFieldError(field string, err error) error {
	fe := domain.FieldErrors{}
	for _, m := range media.Messages(err) {
		fe.Add(field, m)
	}
	return &domain.ValidationError{Fields: fe}
}

// parseIndices accepts a JSON array ("[0,2]") or a comma list ("0,2").
func parseIndices(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, errors.New("expected a JSON array of integers")
		}
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.New("expected a list of integers")
		}
		out = append(out, n)
	}
	return out, nil
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}
