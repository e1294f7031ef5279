package rescore_variants

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/bonusfinder-backend/internal/jobs/runtime"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type stubIdentity struct {
	services.ShopIdentityService
	n   int
	err error
}

func (s *stubIdentity) RescoreVariants(dbc dbctx.Context) (int, error) { return s.n, s.err }

func TestRun(t *testing.T) {
	log, _ := logger.New("test")

	job := &types.JobRun{ID: uuid.New(), JobType: jobsdomain.TypeRescoreVariants, Status: jobsdomain.StatusRunning}
	if err := New(log, &stubIdentity{n: 4}).Run(jobrt.NewContext(context.Background(), nil, job, nil, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != jobsdomain.StatusSuccess {
		t.Fatalf("expected success, got %s", job.Status)
	}

	job = &types.JobRun{ID: uuid.New(), JobType: jobsdomain.TypeRescoreVariants, Status: jobsdomain.StatusRunning}
	boom := errors.New("db down")
	if err := New(log, &stubIdentity{err: boom}).Run(jobrt.NewContext(context.Background(), nil, job, nil, nil)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
