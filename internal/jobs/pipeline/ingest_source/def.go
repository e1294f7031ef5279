package ingest_source

import (
	"context"

	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/ingestion/feed"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

// Fetcher is satisfied by *feed.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string, source string) (*feed.Result, error)
}

type Pipeline struct {
	log       *logger.Logger
	fetcher   Fetcher
	ingestion services.IngestionService
}

func New(baseLog *logger.Logger, fetcher Fetcher, ingestion services.IngestionService) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", jobsdomain.TypeIngestSource),
		fetcher:   fetcher,
		ingestion: ingestion,
	}
}

func (p *Pipeline) Type() string { return jobsdomain.TypeIngestSource }
