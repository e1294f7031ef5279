package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

func newRun(jobType, queue, status string, createdAt time.Time) *types.JobRun {
	return &types.JobRun{
		ID:        uuid.New(),
		JobType:   jobType,
		Queue:     queue,
		Status:    status,
		Stage:     status,
		Payload:   datatypes.JSON([]byte("{}")),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := newRun("rescore_variants", jobsdomain.QueueLight, jobsdomain.StatusQueued, now.Add(-3*time.Hour))
	newer := newRun("expire_coupons", jobsdomain.QueueLight, jobsdomain.StatusQueued, now.Add(-2*time.Hour))
	heavy := newRun("ingest_source", jobsdomain.QueueHeavy, jobsdomain.StatusQueued, now.Add(-4*time.Hour))
	done := newRun("expire_coupons", jobsdomain.QueueLight, jobsdomain.StatusSuccess, now.Add(-5*time.Hour))

	created, err := repo.Create(dbc, []*types.JobRun{older, newer, heavy, done})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("Create: expected 4, got %d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{older.ID, newer.ID, heavy.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// The light queue is walked in created_at order and never yields heavy runs.
	claim1, err := repo.ClaimNextRunnable(dbc, jobsdomain.QueueLight)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #1: %v", err)
	}
	if claim1 == nil || claim1.ID != older.ID {
		t.Fatalf("ClaimNextRunnable #1: expected %v got %v", older.ID, claim1)
	}
	if claim1.Status != jobsdomain.StatusRunning || claim1.Attempts != 1 {
		t.Fatalf("ClaimNextRunnable #1: status=%s attempts=%d", claim1.Status, claim1.Attempts)
	}

	claim2, err := repo.ClaimNextRunnable(dbc, jobsdomain.QueueLight)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #2: %v", err)
	}
	if claim2 == nil || claim2.ID != newer.ID {
		t.Fatalf("ClaimNextRunnable #2: expected %v got %v", newer.ID, claim2)
	}

	claim3, err := repo.ClaimNextRunnable(dbc, jobsdomain.QueueLight)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if claim3 != nil {
		t.Fatalf("ClaimNextRunnable #3: expected nil, got %v", claim3.ID)
	}

	// ClaimByID runs a heavy job exactly once.
	got, err := repo.ClaimByID(dbc, heavy.ID)
	if err != nil {
		t.Fatalf("ClaimByID: %v", err)
	}
	if got == nil || got.Status != jobsdomain.StatusRunning {
		t.Fatalf("ClaimByID: expected running run, got %v", got)
	}
	again, err := repo.ClaimByID(dbc, heavy.ID)
	if err != nil {
		t.Fatalf("ClaimByID (again): %v", err)
	}
	if again != nil {
		t.Fatalf("ClaimByID (again): expected nil")
	}

	// Terminal runs are not overwritten.
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, done.ID, []string{jobsdomain.StatusSuccess}, map[string]interface{}{"status": jobsdomain.StatusFailed})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: expected guarded update to be skipped")
	}

	if err := repo.Heartbeat(dbc, older.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	exists, err := repo.ExistsRunnable(dbc, "rescore_variants")
	if err != nil || !exists {
		t.Fatalf("ExistsRunnable: exists=%v err=%v", exists, err)
	}
	exists, err = repo.ExistsRunnable(dbc, "unknown")
	if err != nil || exists {
		t.Fatalf("ExistsRunnable (unknown): exists=%v err=%v", exists, err)
	}
}

func TestJobRunRepoCancel(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	queued := newRun("expire_coupons", jobsdomain.QueueLight, jobsdomain.StatusQueued, now)
	running := newRun("ingest_source", jobsdomain.QueueHeavy, jobsdomain.StatusRunning, now)
	if _, err := repo.Create(dbc, []*types.JobRun{queued, running}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := repo.RequestCancel(dbc, queued.ID); err != nil || !ok {
		t.Fatalf("RequestCancel queued: ok=%v err=%v", ok, err)
	}
	row, err := repo.GetByID(dbc, queued.ID)
	if err != nil || row == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != jobsdomain.StatusCancelled {
		t.Fatalf("queued run: expected cancelled, got %s", row.Status)
	}

	if ok, err := repo.RequestCancel(dbc, running.ID); err != nil || !ok {
		t.Fatalf("RequestCancel running: ok=%v err=%v", ok, err)
	}
	row, _ = repo.GetByID(dbc, running.ID)
	if row.Status != jobsdomain.StatusRunning {
		t.Fatalf("running run: expected still running, got %s", row.Status)
	}
	flagged, err := repo.IsCancelRequested(dbc, running.ID)
	if err != nil || !flagged {
		t.Fatalf("IsCancelRequested: flagged=%v err=%v", flagged, err)
	}
}

func TestJobRunRepoFailUnfinishedBefore(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))
	events := NewJobRunEventRepo(db, testutil.Logger(t))

	epoch := time.Now().UTC()
	stale := newRun("ingest_source", jobsdomain.QueueHeavy, jobsdomain.StatusRunning, epoch.Add(-time.Hour))
	staleQueued := newRun("expire_coupons", jobsdomain.QueueLight, jobsdomain.StatusQueued, epoch.Add(-time.Minute))
	fresh := newRun("expire_coupons", jobsdomain.QueueLight, jobsdomain.StatusQueued, epoch.Add(time.Minute))
	if _, err := repo.Create(dbc, []*types.JobRun{stale, staleQueued, fresh}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := repo.FailUnfinishedBefore(dbc, epoch, "container restarted")
	if err != nil {
		t.Fatalf("FailUnfinishedBefore: %v", err)
	}
	if n != 2 {
		t.Fatalf("FailUnfinishedBefore: expected 2 rows, got %d", n)
	}
	row, _ := repo.GetByID(dbc, stale.ID)
	if row.Status != jobsdomain.StatusFailed || row.Error != "container restarted" {
		t.Fatalf("stale run: status=%s error=%q", row.Status, row.Error)
	}
	row, _ = repo.GetByID(dbc, fresh.ID)
	if row.Status != jobsdomain.StatusQueued {
		t.Fatalf("fresh run: expected queued, got %s", row.Status)
	}

	if err := events.Create(dbc, []*types.JobRunEvent{
		{JobID: stale.ID, JobType: stale.JobType, Kind: jobsdomain.EventFailed, Message: "container restarted", CreatedAt: epoch},
	}); err != nil {
		t.Fatalf("events.Create: %v", err)
	}
	list, err := events.ListByJob(dbc, stale.ID, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("events.ListByJob: err=%v len=%d", err, len(list))
	}
}
