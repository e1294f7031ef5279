package ingest_source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
)

// maxReportedFailures caps the per-shop failure messages written to the
// job's stream; the full count is always in the result.
const maxReportedFailures = 50

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	urls := payloadURLs(jc.Payload())
	source := jc.PayloadString("source")
	if len(urls) == 0 {
		jc.Fail("validate", fmt.Errorf("payload needs url or urls"))
		return nil
	}

	jc.Progress("fetch", 5, fmt.Sprintf("Fetching %d feed page(s)", len(urls)))
	fetched, err := p.fetcher.Fetch(jc.Ctx, urls, source)
	if err != nil {
		if jc.Ctx.Err() != nil {
			return jobrt.ErrCancelled
		}
		return fmt.Errorf("fetch: %w", err)
	}
	for _, f := range fetched.Failed {
		jc.Message("Feed page failed", map[string]any{"url": f.URL, "error": f.Err})
	}
	if err := jc.CheckCancelled(); err != nil {
		return err
	}

	jc.Progress("ingest", 30, fmt.Sprintf("Ingesting %d shop(s)", len(fetched.Shops)))
	res, err := p.ingestion.IngestBatch(jc.Ctx, fetched.Shops, func(ctx context.Context) (bool, error) {
		err := jc.CheckCancelled()
		if errors.Is(err, jobrt.ErrCancelled) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for i, f := range res.Failed {
		if i >= maxReportedFailures {
			break
		}
		jc.Message("Shop ingestion failed", map[string]any{"name": f.Name, "source": f.Source, "error": f.Error})
	}
	rateErrors := 0
	for _, r := range res.Results {
		rateErrors += len(r.Errors)
	}
	p.log.Info("Feed ingested",
		"job_id", jc.Job.ID,
		"pages", len(urls),
		"pages_failed", len(fetched.Failed),
		"shops", len(res.Results),
		"shops_failed", len(res.Failed),
		"rates_changed", res.RatesChanged(),
		"cancelled", res.Cancelled,
	)
	if res.Cancelled {
		return jobrt.ErrCancelled
	}

	jc.Succeed("done", map[string]any{
		"pages":         len(urls),
		"pages_failed":  len(fetched.Failed),
		"shops":         len(res.Results),
		"shops_failed":  len(res.Failed),
		"rates_changed": res.RatesChanged(),
		"rate_errors":   rateErrors,
	})
	return nil
}

func payloadURLs(payload map[string]any) []string {
	var out []string
	add := func(v any) {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	switch v := payload["urls"].(type) {
	case []any:
		for _, u := range v {
			add(u)
		}
	case string:
		for _, u := range strings.Split(v, ",") {
			add(u)
		}
	}
	add(payload["url"])
	return out
}
