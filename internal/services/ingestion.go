package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	"github.com/yungbote/bonusfinder-backend/internal/events"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/validate"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// ShopData is one shop as reported by an external source.
type ShopData struct {
	Name     string      `json:"name" validate:"required"`
	Source   string      `json:"source" validate:"required"`
	SourceID *string     `json:"source_id,omitempty"`
	Rates    []RateEntry `json:"rates" validate:"dive"`
}

type RateEntry struct {
	Program          string   `json:"program" validate:"required"`
	PointsPerEUR     *float64 `json:"points_per_eur,omitempty" validate:"omitempty,gte=0"`
	PointsAbsolute   *float64 `json:"points_absolute,omitempty" validate:"omitempty,gte=0"`
	CashbackPct      *float64 `json:"cashback_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	CashbackAbsolute *float64 `json:"cashback_absolute,omitempty" validate:"omitempty,gte=0"`
	PointValueEUR    *float64 `json:"point_value_eur,omitempty" validate:"omitempty,gte=0"`
	Category         *string  `json:"category,omitempty"`
	RateType         *string  `json:"rate_type,omitempty" validate:"omitempty,oneof=shopping contract"`
	RateNote         *string  `json:"rate_note,omitempty"`
}

type RateError struct {
	Index   int    `json:"index"`
	Program string `json:"program"`
	Err     error  `json:"-"`
	Message string `json:"message"`
}

func (e RateError) Error() string {
	return fmt.Sprintf("rate %d (%s): %v", e.Index, e.Program, e.Err)
}

type IngestResult struct {
	Name             string      `json:"name"`
	Source           string      `json:"source"`
	CanonicalID      uuid.UUID   `json:"canonical_id"`
	LegacyShopID     uuid.UUID   `json:"legacy_shop_id"`
	CreatedCanonical bool        `json:"created_canonical"`
	Confidence       float64     `json:"confidence"`
	RatesChanged     int         `json:"rates_changed"`
	RatesUnchanged   int         `json:"rates_unchanged"`
	Errors           []RateError `json:"errors,omitempty"`
}

type ShopFailure struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

type BatchResult struct {
	Results   []*IngestResult `json:"results"`
	Failed    []ShopFailure   `json:"failed"`
	Cancelled bool            `json:"cancelled"`
}

func (b *BatchResult) RatesChanged() int {
	n := 0
	for _, r := range b.Results {
		n += r.RatesChanged
	}
	return n
}

// CancelCheck is polled between shops. Returning true stops the batch.
type CancelCheck func(ctx context.Context) (bool, error)

type IngestionService interface {
	Ingest(ctx context.Context, data ShopData) (*IngestResult, error)
	IngestBatch(ctx context.Context, batch []ShopData, cancel CancelCheck) (*BatchResult, error)
}

type ingestionService struct {
	db        *gorm.DB
	log       *logger.Logger
	identity  ShopIdentityService
	programs  ProgramRegistry
	rates     RateStore
	publisher events.Publisher
}

func NewIngestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	identity ShopIdentityService,
	programs ProgramRegistry,
	rates RateStore,
	publisher events.Publisher,
) IngestionService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &ingestionService{
		db:        db,
		log:       baseLog.With("service", "IngestionService"),
		identity:  identity,
		programs:  programs,
		rates:     rates,
		publisher: publisher,
	}
}

// Ingest reconciles one ShopData in a single transaction. Identity failures
// abort the record; each rate runs in its own savepoint so one bad entry
// does not undo the others.
func (s *ingestionService) Ingest(ctx context.Context, data ShopData) (*IngestResult, error) {
	if err := validate.Struct(data); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "ingestion.ingest",
		attribute.String("shop.source", data.Source),
		attribute.Int("shop.rates", len(data.Rates)),
	)
	defer span.End()

	res := &IngestResult{Name: strings.TrimSpace(data.Name), Source: strings.TrimSpace(data.Source)}
	var changed []*types.ShopProgramRate
	err := inTx(dbctx.Context{Ctx: ctx}, s.db, func(txc dbctx.Context) error {
		ident, err := s.identity.GetOrCreateCanonical(txc, data.Name, data.Source, data.SourceID)
		if err != nil {
			return fmt.Errorf("resolve identity: %w", err)
		}
		res.CanonicalID = ident.Canonical.ID
		res.LegacyShopID = ident.LegacyShop.ID
		res.CreatedCanonical = ident.Created
		res.Confidence = ident.Confidence

		for i, entry := range data.Rates {
			var row *types.ShopProgramRate
			var rowChanged bool
			rerr := inTx(txc, s.db, func(rtx dbctx.Context) error {
				var err error
				rowChanged, row, err = s.applyRate(rtx, ident.LegacyShop.ID, entry)
				return err
			})
			if rerr != nil {
				res.Errors = append(res.Errors, RateError{Index: i, Program: entry.Program, Err: rerr, Message: rerr.Error()})
				continue
			}
			if rowChanged {
				res.RatesChanged++
				changed = append(changed, row)
			} else {
				res.RatesUnchanged++
			}
		}
		return nil
	})
	m := observability.Current()
	if err != nil {
		span.RecordError(err)
		m.IncIngestShop(res.Source, "failed")
		return nil, err
	}
	m.IncIngestShop(res.Source, "ok")
	m.AddIngestRates(res.Source, "changed", res.RatesChanged)
	m.AddIngestRates(res.Source, "unchanged", res.RatesUnchanged)
	m.AddIngestRates(res.Source, "error", len(res.Errors))
	if len(res.Errors) > 0 {
		s.log.Warn("Ingested shop with rate errors", "shop", res.Name, "source", res.Source, "errors", len(res.Errors))
	}

	if len(changed) > 0 {
		evs := make([]events.Event, 0, len(changed))
		for _, row := range changed {
			evs = append(evs, rateChangedEvent(row, "ingestion:"+res.Source))
		}
		if perr := s.publisher.Publish(ctx, evs...); perr != nil {
			s.log.Warn("Failed to publish rate events", "error", perr)
		}
	}
	return res, nil
}

func (s *ingestionService) applyRate(dbc dbctx.Context, shopID uuid.UUID, entry RateEntry) (bool, *types.ShopProgramRate, error) {
	prog, err := s.programs.EnsureProgram(dbc, entry.Program, entry.PointValueEUR)
	if err != nil {
		return false, nil, err
	}
	var categoryID *uuid.UUID
	if entry.Category != nil && strings.TrimSpace(*entry.Category) != "" {
		cat, err := s.programs.EnsureCategory(dbc, *entry.Category)
		if err != nil {
			return false, nil, err
		}
		categoryID = &cat.ID
	}
	w := RateWrite{
		ShopID:           shopID,
		ProgramID:        prog.ID,
		CategoryID:       categoryID,
		PointsPerEUR:     entry.PointsPerEUR,
		PointsAbsolute:   entry.PointsAbsolute,
		CashbackPct:      entry.CashbackPct,
		CashbackAbsolute: entry.CashbackAbsolute,
		RateNote:         entry.RateNote,
	}
	if entry.RateType != nil {
		w.RateType = *entry.RateType
	}
	return s.rates.Reconcile(dbc, w)
}

// IngestBatch ingests shops one by one, each in its own transaction. A failed
// shop is recorded and the batch moves on.
func (s *ingestionService) IngestBatch(ctx context.Context, batch []ShopData, cancel CancelCheck) (*BatchResult, error) {
	out := &BatchResult{Results: []*IngestResult{}, Failed: []ShopFailure{}}
	for i, data := range batch {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if cancel != nil {
			stop, err := cancel(ctx)
			if err != nil {
				return out, fmt.Errorf("check cancel: %w", err)
			}
			if stop {
				out.Cancelled = true
				s.log.Info("Ingestion batch cancelled", "processed", i, "total", len(batch))
				return out, nil
			}
		}
		res, err := s.Ingest(ctx, data)
		if err != nil {
			if !errors.Is(err, apperr.ErrInvalidArgument) {
				s.log.Warn("Shop ingestion failed", "shop", data.Name, "source", data.Source, "error", err)
			}
			out.Failed = append(out.Failed, ShopFailure{Index: i, Name: data.Name, Source: data.Source, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

func rateChangedEvent(row *types.ShopProgramRate, origin string) events.Event {
	data := map[string]any{
		"rate_id":    row.ID.String(),
		"shop_id":    row.ShopID.String(),
		"program_id": row.ProgramID.String(),
		"rate_type":  row.RateType,
		"valid_from": row.ValidFrom,
		"origin":     origin,
	}
	if row.CategoryID != nil {
		data["category_id"] = row.CategoryID.String()
	}
	if row.PointsPerEUR != nil {
		data["points_per_eur"] = *row.PointsPerEUR
	}
	if row.PointsAbsolute != nil {
		data["points_absolute"] = *row.PointsAbsolute
	}
	if row.CashbackPct != nil {
		data["cashback_pct"] = *row.CashbackPct
	}
	if row.CashbackAbsolute != nil {
		data["cashback_absolute"] = *row.CashbackAbsolute
	}
	return events.New(events.TypeRateChanged, row.ShopID.String()+":"+row.ProgramID.String(), data)
}
