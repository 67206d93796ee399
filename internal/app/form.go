package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"offer_console/internal/domain"
	"offer_console/internal/media"
)

type FormState int

const (
	FormIdle FormState = iota
	FormValidating
	FormSubmitting
	FormSucceeded
	FormFailed
)

func (s FormState) String() string {
	switch s {
	case FormValidating:
		return "validating"
	case FormSubmitting:
		return "submitting"
	case FormSucceeded:
		return "succeeded"
	case FormFailed:
		return "failed"
	}
	return "idle"
}

// FormController drives the create flow: validate, decode images, create.
// One controller serves one form; it never holds more than one submission.
type FormController struct {
	svc domain.OfferService

	mu    sync.Mutex
	state FormState
	err   error
}

func NewFormController(svc domain.OfferService) *FormController {
	return &FormController{svc: svc}
}

// State returns the current state and, when Failed, the failure.
func (c *FormController) State() (FormState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

// Submit validates d and the pending images, then creates the offer.
// It returns *domain.ValidationError without any network call when the
// input is invalid, *domain.SubmissionError when the service fails, and
// domain.ErrAlreadyInProgress when another Submit has not returned yet.
// The caller's draft is never touched.
func (c *FormController) Submit(ctx context.Context, d domain.Draft, main *media.Pending, gallery []media.Pending) (domain.Offer, error) {
	if err := c.begin(); err != nil {
		return domain.Offer{}, err
	}

	d = cleanDraft(d)
	fe := draftErrors(d)
	addImageErrors(fe, main, gallery)
	if !fe.Empty() {
		return domain.Offer{}, c.finish(&domain.ValidationError{Fields: fe})
	}

	req := domain.CreateRequest{Fields: draftFields(d)}
	if main != nil {
		up, err := media.Decode(*main)
		if err != nil {
			return domain.Offer{}, c.finish(imageValidation("mainImage", err))
		}
		req.MainImage = &up
	}
	if len(gallery) > 0 {
		ups, err := media.DecodeAll(gallery)
		if err != nil {
			return domain.Offer{}, c.finish(imageValidation("additionalImages", err))
		}
		req.Images = ups
	}

	c.setState(FormSubmitting)
	created, err := c.svc.Create(ctx, req)
	if ctx.Err() != nil {
		// the form went away while the call was in flight
		log.Debug().Err(ctx.Err()).Msg("discarding late create result")
		return domain.Offer{}, c.finish(ctx.Err())
	}
	if err != nil {
		log.Warn().Err(err).Msg("offer create failed")
		return domain.Offer{}, c.finish(&domain.SubmissionError{Err: err})
	}

	log.Info().Str("offer_id", string(created.ID)).Int("images", len(req.Images)).Msg("offer created")
	return created, c.finish(nil)
}

func (c *FormController) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == FormValidating || c.state == FormSubmitting {
		return domain.ErrAlreadyInProgress
	}
	c.state, c.err = FormValidating, nil
	return nil
}

func (c *FormController) setState(s FormState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *FormController) finish(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state, c.err = FormFailed, err
		return err
	}
	c.state, c.err = FormSucceeded, nil
	return nil
}

func addImageErrors(fe domain.FieldErrors, main *media.Pending, gallery []media.Pending) {
	if main != nil {
		if err := main.Check(); err != nil {
			for _, m := range media.Messages(err) {
				fe.Add("mainImage", m)
			}
		}
	}
	if err := media.CheckGallery(gallery); err != nil {
		for _, m := range media.Messages(err) {
			fe.Add("additionalImages", m)
		}
	}
}

func imageValidation(field string, err error) *domain.ValidationError {
	fe := domain.FieldErrors{}
	for _, m := range media.Messages(err) {
		fe.Add(field, m)
	}
	return &domain.ValidationError{Fields: fe}
}
