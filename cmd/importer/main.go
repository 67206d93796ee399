package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/semaphore"

	"offer_console/internal/adapters/observability"
	"offer_console/internal/adapters/offerapi"
	"offer_console/internal/app"
	"offer_console/internal/domain"
	"offer_console/internal/media"
	"offer_console/internal/shared"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	a := &cli.App{
		Name:      "importer",
		Usage:     "Create offers in bulk from a JSON manifest",
		ArgsUsage: "<manifest.json>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				EnvVars: []string{"IMPORT_WORKERS"},
				Value:   cfg.ImportWorkers,
				Usage:   "offers submitted concurrently",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "validate and encode everything without calling the offer service",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one manifest path is required", 2)
			}
			m, err := readManifest(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			var svc domain.OfferService = dryRun{}
			if !c.Bool("dry-run") {
				svc, err = offerapi.New(cfg.OfferAPIBase, cfg.OfferAPIToken, cfg.OfferAPIRPS)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}

			failed := run(c.Context, svc, m, c.Int("workers"))
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d offers failed", failed, len(m.entries)), 1)
			}
			return nil
		},
	}
	if err := a.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("importer failed")
	}
}

// run submits every entry and returns how many failed.
func run(ctx context.Context, svc domain.OfferService, m manifest, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	log.Info().Int("offers", len(m.entries)).Int("workers", workers).Msg("import starting")

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i, e := range m.entries {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("import interrupted")
			failed.Add(int32(len(m.entries) - i))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			o, err := importOne(ctx, svc, m, e)
			observability.ObserveSubmission("import", err)
			if err != nil {
				failed.Add(1)
				logFailure(e.label(i), err)
				return
			}
			log.Info().Str("offer", e.label(i)).Str("id", string(o.ID)).Msg("import ok")
		}()
	}
	wg.Wait()

	n := int(failed.Load())
	log.Info().Int("ok", len(m.entries)-n).Int("failed", n).Msg("import completed")
	return n
}

// importOne gives each offer its own form so submissions do not block each other.
func importOne(ctx context.Context, svc domain.OfferService, m manifest, e entry) (domain.Offer, error) {
	mainFile, galleryFiles, err := m.files(e)
	if err != nil {
		return domain.Offer{}, err
	}
	var main *media.Pending
	if mainFile != nil {
		p, err := media.Encode(*mainFile)
		if err != nil {
			return domain.Offer{}, err
		}
		main = &p
	}
	gallery, err := media.EncodeAll(ctx, galleryFiles)
	if err != nil {
		return domain.Offer{}, err
	}
	return app.NewFormController(svc).Submit(ctx, e.draft(), main, gallery)
}

func logFailure(label string, err error) {
	ev := log.Warn().Str("offer", label)
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		ev = ev.Interface("fields", ve.Fields)
	case errors.Is(err, media.ErrImage):
		ev = ev.Strs("images", media.Messages(err))
	default:
		ev = ev.Err(err)
	}
	ev.Msg("import failed")
}

// dryRun accepts every create without sending anything.
type dryRun struct{}

func (dryRun) List(context.Context, domain.Lang, bool) ([]domain.Offer, error) {
	return nil, errors.New("dry run")
}

func (dryRun) Create(_ context.Context, req domain.CreateRequest) (domain.Offer, error) {
	return domain.Offer{ID: "dry-run", TitleEN: req.Fields["title_en"]}, nil
}

func (dryRun) Update(context.Context, domain.UpdatePayload) (domain.Offer, error) {
	return domain.Offer{}, errors.New("dry run")
}

func (dryRun) Delete(context.Context, domain.OfferID) error { return errors.New("dry run") }

func (dryRun) SetAvailability(context.Context, domain.OfferID, bool) (domain.Offer, error) {
	return domain.Offer{}, errors.New("dry run")
}
