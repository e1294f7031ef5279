package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

// ErrCancelled is returned by CheckCancelled once a cancel was requested.
var ErrCancelled = errors.New("job cancelled")

/*
Context is the execution handle for a single claimed job run. Handlers never
touch job_run directly; status, progress and the message stream all go
through it.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Events repos.JobRunEventRepo

	payload map[string]any
}

// NewContext decodes the job payload eagerly. A malformed payload yields an
// empty map; handlers validate the fields they need.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, events repos.JobRunEventRepo) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Events: events,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		return
	}
	if td := ctxutil.TraceFromMap(c.payload); td != nil {
		c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
	}
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// dbc detaches bookkeeping writes from the run's deadline so a timed out or
// cancelled run can still record its final status.
func (c *Context) dbc() dbctx.Context {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return dbctx.Context{Ctx: context.WithoutCancel(ctx)}
}

func (c *Context) jobID() uuid.UUID {
	if c == nil || c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ID
}

// CheckCancelled returns ErrCancelled when a cancel was requested or the
// job's context is done. Handlers call it at natural boundaries.
func (c *Context) CheckCancelled() error {
	if c == nil {
		return nil
	}
	if c.Ctx != nil {
		if err := c.Ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}
	if c.Repo == nil || c.jobID() == uuid.Nil {
		return nil
	}
	requested, err := c.Repo.IsCancelRequested(c.dbc(), c.jobID())
	if err != nil {
		return fmt.Errorf("check cancel: %w", err)
	}
	if requested {
		return ErrCancelled
	}
	return nil
}

// Message appends an entry to the run's message stream without changing its
// status.
func (c *Context) Message(msg string, data map[string]any) {
	c.appendEvent(jobsdomain.EventMessage, msg, data)
}

// Progress records a non-terminal status update and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), terminalStatuses, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
		})
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now
	c.appendEvent(jobsdomain.EventProgress, msg, nil)
}

// Fail marks the run failed unless it already reached a terminal status.
func (c *Context) Fail(stage string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	now := time.Now().UTC()
	if !c.finish(map[string]interface{}{
		"status":        jobsdomain.StatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"finished_at":   now,
		"locked_at":     nil,
	}) {
		return
	}
	c.Job.Status = jobsdomain.StatusFailed
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.FinishedAt = &now
	c.appendEvent(jobsdomain.EventFailed, msg, nil)
}

// Cancelled marks the run cancelled after the handler stopped cooperatively.
func (c *Context) Cancelled(stage string) {
	now := time.Now().UTC()
	if !c.finish(map[string]interface{}{
		"status":      jobsdomain.StatusCancelled,
		"stage":       stage,
		"message":     "Cancelled",
		"finished_at": now,
		"locked_at":   nil,
	}) {
		return
	}
	c.Job.Status = jobsdomain.StatusCancelled
	c.Job.Stage = stage
	c.Job.FinishedAt = &now
	c.appendEvent(jobsdomain.EventCancelled, "Cancelled", nil)
}

// Succeed stores result as JSON and marks the run successful.
func (c *Context) Succeed(finalStage string, result any) {
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	now := time.Now().UTC()
	if !c.finish(map[string]interface{}{
		"status":       jobsdomain.StatusSuccess,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"finished_at":  now,
		"heartbeat_at": now,
		"locked_at":    nil,
	}) {
		return
	}
	c.Job.Status = jobsdomain.StatusSuccess
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Result = res
	c.Job.FinishedAt = &now
	c.appendEvent(jobsdomain.EventSucceeded, "", nil)
}

var terminalStatuses = []string{jobsdomain.StatusSuccess, jobsdomain.StatusFailed, jobsdomain.StatusCancelled}

// finish applies a terminal transition. It reports false when the run had
// already reached a terminal status.
func (c *Context) finish(updates map[string]interface{}) bool {
	if c == nil || c.Job == nil {
		return false
	}
	if c.Repo == nil {
		return true
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), terminalStatuses, updates)
	return err == nil && ok
}

func (c *Context) appendEvent(kind, msg string, data map[string]any) {
	if c == nil || c.Events == nil || c.Job == nil {
		return
	}
	var raw datatypes.JSON
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	_ = c.Events.Create(c.dbc(), []*types.JobRunEvent{{
		JobID:    c.Job.ID,
		JobType:  c.Job.JobType,
		Kind:     kind,
		Stage:    c.Job.Stage,
		Progress: c.Job.Progress,
		Message:  msg,
		Data:     raw,
	}})
}
