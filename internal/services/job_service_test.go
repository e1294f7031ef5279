package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	pushed []uuid.UUID
}

func (d *recordingDispatcher) Push(ctx context.Context, jobID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushed = append(d.pushed, jobID)
	return nil
}

func newJobService(t *testing.T, f *fixture, d JobDispatcher) JobService {
	t.Helper()
	return NewJobService(f.db, testutil.Logger(t), f.jobRuns, f.jobEvents, d)
}

func TestEnqueueRoutesByQueue(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{}
	jobs := newJobService(t, f, d)

	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t-1", RequestID: "r-1"})
	light, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, nil, jobsdomain.TypeExpireCoupons, nil)
	require.NoError(t, err)
	require.Equal(t, jobsdomain.QueueLight, light.Queue)
	require.Equal(t, jobsdomain.StatusQueued, light.Status)
	require.Contains(t, string(light.Payload), `"trace_id":"t-1"`)
	require.Contains(t, string(light.Payload), `"request_id":"r-1"`)

	heavy, err := jobs.Enqueue(f.dbc(), nil, jobsdomain.TypeIngestSource, map[string]any{"url": "http://feed.test/a"})
	require.NoError(t, err)
	require.Equal(t, jobsdomain.QueueHeavy, heavy.Queue)
	require.Equal(t, []uuid.UUID{heavy.ID}, d.pushed)

	_, err = jobs.Enqueue(f.dbc(), nil, " ", nil)
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestEnqueueInsideTransactionDefersDispatch(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{}
	jobs := newJobService(t, f, d)

	tx := f.db.Begin()
	job, err := jobs.Enqueue(dbctx.Context{Ctx: context.Background(), Tx: tx}, nil, jobsdomain.TypeIngestSource, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit().Error)
	require.Empty(t, d.pushed)

	require.NoError(t, jobs.Dispatch(f.dbc(), job.ID))
	require.Equal(t, []uuid.UUID{job.ID}, d.pushed)
	require.ErrorIs(t, jobs.Dispatch(f.dbc(), uuid.New()), ErrJobNotFound)
}

func TestHeavyJobWithoutDispatcher(t *testing.T) {
	f := newFixture(t)
	jobs := newJobService(t, f, nil)

	job, err := jobs.Enqueue(f.dbc(), nil, jobsdomain.TypeIngestSource, nil)
	require.Error(t, err)
	require.NotNil(t, job)

	// light jobs never need the queue
	_, err = jobs.Enqueue(f.dbc(), nil, jobsdomain.TypeRescoreVariants, nil)
	require.NoError(t, err)
}

func TestGetAndCancel(t *testing.T) {
	f := newFixture(t)
	jobs := newJobService(t, f, &recordingDispatcher{})

	job, err := jobs.Enqueue(f.dbc(), nil, jobsdomain.TypeExpireCoupons, nil)
	require.NoError(t, err)

	detail, err := jobs.Get(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 1)
	require.Equal(t, jobsdomain.EventCreated, detail.Events[0].Kind)

	cancelled, err := jobs.Cancel(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Equal(t, jobsdomain.StatusCancelled, cancelled.Status)

	detail, err = jobs.Get(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 2)

	// cancelling a finished run is a no-op
	again, err := jobs.Cancel(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Equal(t, jobsdomain.StatusCancelled, again.Status)
	detail, err = jobs.Get(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 2)

	_, err = jobs.Get(f.dbc(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
	_, err = jobs.Cancel(f.dbc(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestRecoverUnfinishedAndHasRunnable(t *testing.T) {
	f := newFixture(t)
	jobs := newJobService(t, f, &recordingDispatcher{})

	job, err := jobs.Enqueue(f.dbc(), nil, jobsdomain.TypeRescoreVariants, nil)
	require.NoError(t, err)

	ok, err := jobs.HasRunnable(f.dbc(), jobsdomain.TypeRescoreVariants)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := jobs.RecoverUnfinished(f.dbc(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	detail, err := jobs.Get(f.dbc(), job.ID)
	require.NoError(t, err)
	require.Equal(t, jobsdomain.StatusFailed, detail.Status)
	require.Equal(t, RestartReason, detail.Error)

	ok, err = jobs.HasRunnable(f.dbc(), jobsdomain.TypeRescoreVariants)
	require.NoError(t, err)
	require.False(t, ok)
}
