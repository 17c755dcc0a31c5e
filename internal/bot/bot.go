// Package bot runs pronunciation records against one wiki: it prepares the
// lookup caches for a batch, then edits each page under the edit-conflict
// retry protocol.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"llbot/internal/cache"
	"llbot/internal/mediawiki"
	"llbot/internal/metrics"
	"llbot/internal/pronunciation"
	"llbot/internal/record"
	"llbot/internal/sparql"
	"llbot/internal/wiki"
	"llbot/internal/wikitext"
	"llbot/internal/worker"
)

// PageStore fetches and writes wiki pages.
type PageStore interface {
	Fetch(ctx context.Context, title string) (mediawiki.Page, error)
	Write(ctx context.Context, page mediawiki.Page, text, summary string) error
}

// Querier runs SPARQL queries.
type Querier interface {
	Query(ctx context.Context, query string) ([]sparql.Row, error)
}

// LanguageSnapshot persists the language code map between runs.
type LanguageSnapshot interface {
	LoadLanguages(ctx context.Context) (map[string]string, error)
	SaveLanguages(ctx context.Context, codes map[string]string) error
}

// Options tunes a Bot.
type Options struct {
	// MaxConflictRetries bounds the restarts after an edit conflict.
	MaxConflictRetries int
	// LocationBatchSize is the number of locations per label query.
	LocationBatchSize int
	// Workers is the number of label queries run in parallel.
	Workers int
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxConflictRetries: 5,
		LocationBatchSize:  50,
		Workers:            4,
	}
}

// Bot edits pages of a single wiki.
type Bot struct {
	wiki     wiki.Wiki
	pages    PageStore
	querier  Querier
	snapshot LanguageSnapshot // optional
	metrics  *metrics.Metrics // optional
	opts     Options
	editor   *pronunciation.Editor
}

// New creates a bot. snapshot and m may be nil.
func New(w wiki.Wiki, pages PageStore, querier Querier, snapshot LanguageSnapshot, m *metrics.Metrics, opts Options) *Bot {
	if opts.MaxConflictRetries < 0 {
		opts.MaxConflictRetries = 0
	}
	return &Bot{
		wiki:     w,
		pages:    pages,
		querier:  querier,
		snapshot: snapshot,
		metrics:  m,
		opts:     opts,
	}
}

// Prepare builds the language code map and the location labels of records.
// The maps are read-only afterwards.
func (b *Bot) Prepare(ctx context.Context, records []record.Record) error {
	languages, err := b.loadLanguages(ctx)
	if err != nil {
		return err
	}

	locations, err := b.loadLocations(ctx, record.LocationIDs(records))
	if err != nil {
		return err
	}

	b.editor = pronunciation.NewEditor(b.wiki, languages, locations)

	log.Info().
		Str("wiki", b.wiki.Name).
		Int("languages", languages.Len()).
		Int("locations", locations.Len()).
		Int("records", len(records)).
		Msg("Prepared batch")
	return nil
}

func (b *Bot) loadLanguages(ctx context.Context) (*cache.Languages, error) {
	rows, err := b.querier.Query(ctx, b.wiki.LanguageQuery)
	if err != nil {
		if b.snapshot == nil {
			return nil, fmt.Errorf("query language codes: %w", err)
		}
		log.Warn().Err(err).Msg("Language code query failed, using stored snapshot")
		codes, loadErr := b.snapshot.LoadLanguages(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("query language codes: %w", errors.Join(err, loadErr))
		}
		return cache.NewLanguages(codes), nil
	}

	codes := make(map[string]string, len(rows))
	for _, row := range rows {
		if row["item"] != "" && row["code"] != "" {
			codes[row["item"]] = row["code"]
		}
	}

	if b.snapshot != nil {
		if err := b.snapshot.SaveLanguages(ctx, codes); err != nil {
			log.Warn().Err(err).Msg("Failed to store language code snapshot")
		}
	}
	return cache.NewLanguages(codes), nil
}

func (b *Bot) loadLocations(ctx context.Context, ids []string) (*cache.Locations, error) {
	rows := make(map[string]cache.Location)
	if len(ids) == 0 {
		return cache.NewLocations(rows), nil
	}

	pool := worker.NewPool[[]string, []sparql.Row](b.opts.Workers, func(ctx context.Context, batch []string) ([]sparql.Row, error) {
		return b.querier.Query(ctx, b.wiki.RenderLocationQuery(batch))
	})

	for _, task := range pool.Execute(ctx, worker.Batch(ids, b.opts.LocationBatchSize)) {
		if task.Err != nil {
			return nil, fmt.Errorf("query location labels: %w", task.Err)
		}
		for _, row := range task.Result {
			if row["location"] == "" {
				continue
			}
			rows[row["location"]] = cache.Location{
				Label:   row["locationLabel"],
				Country: row["countryLabel"],
			}
		}
	}

	return cache.NewLocations(rows), nil
}

// Execute adds the record's audio file to its page. Skips are reported in
// the Result; only write failures and exhausted conflict retries return an
// error.
func (b *Bot) Execute(ctx context.Context, rec record.Record) (Result, error) {
	if b.editor == nil {
		return Result{}, ErrNotPrepared
	}

	logger := log.With().Str("record", rec.ID).Str("title", rec.Transcription).Str("wiki", b.wiki.Name).Logger()
	maxAttempts := b.opts.MaxConflictRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome, err := b.attempt(ctx, rec)
		if err == nil {
			b.metrics.ObserveOutcome(b.wiki.Name, outcome.String())
			switch outcome {
			case Added:
				logger.Info().Str("url", b.wiki.PageURL(rec.Transcription)).Int("attempts", attempt).Msg("Added pronunciation")
			default:
				logger.Info().Str("outcome", outcome.String()).Msg("Skipped record")
			}
			return Result{Outcome: outcome, Attempts: attempt}, nil
		}

		if !IsEditConflict(err) {
			b.metrics.IncFailures()
			b.metrics.ObserveOutcome(b.wiki.Name, Failed.String())
			logger.Error().Err(err).Int("attempt", attempt).Msg("Edit failed")
			return Result{Outcome: Failed, Attempts: attempt}, err
		}

		b.metrics.IncConflicts()
		logger.Warn().Int("attempt", attempt).Msg("Edit conflict, restarting from a fresh copy")
	}

	b.metrics.ObserveOutcome(b.wiki.Name, Failed.String())
	return Result{Outcome: Failed, Attempts: maxAttempts},
		fmt.Errorf("%w: %q after %d attempts", ErrTooManyConflicts, rec.Transcription, maxAttempts)
}

// attempt runs one fetch-edit-write cycle on a fresh copy of the page.
func (b *Bot) attempt(ctx context.Context, rec record.Record) (Outcome, error) {
	page, err := b.pages.Fetch(ctx, rec.Transcription)
	if err != nil {
		return Failed, fmt.Errorf("fetch page: %w", err)
	}
	if !page.Exists {
		return PageNotFound, nil
	}
	if FileReferenced(page.Text, rec.File) {
		return AlreadyPresent, nil
	}

	doc := wikitext.Parse(page.Text)
	err = b.editor.Apply(doc, pronunciation.Edit{
		File:     rec.File,
		Language: rec.Language.QID,
		Location: rec.Location(),
	})
	switch {
	case errors.Is(err, pronunciation.ErrLanguageNotMapped):
		return LanguageNotMapped, nil
	case errors.Is(err, pronunciation.ErrLanguageSectionNotFound):
		return LanguageSectionNotFound, nil
	case err != nil:
		return Failed, fmt.Errorf("edit page: %w", err)
	}

	if err := b.pages.Write(ctx, page, doc.String(), b.wiki.Summary); err != nil {
		return Failed, err
	}
	b.metrics.IncWrites()
	return Added, nil
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Outcomes map[Outcome]int
	Errors   []error
}

// Run executes every record in order. A failed record is logged and counted
// and the batch moves on; only cancellation stops it early.
func (b *Bot) Run(ctx context.Context, records []record.Record) (Summary, error) {
	summary := Summary{Outcomes: make(map[Outcome]int)}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := b.Execute(ctx, rec)
		summary.Outcomes[res.Outcome]++
		if err != nil {
			if errors.Is(err, ErrNotPrepared) || ctx.Err() != nil {
				return summary, err
			}
			summary.Errors = append(summary.Errors, fmt.Errorf("record %s: %w", rec.ID, err))
		}
	}

	return summary, nil
}
