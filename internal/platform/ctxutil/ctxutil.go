// Package ctxutil carries the caller identity and trace ids through a request
// and into the job runs and events it causes.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type (
	requestDataKey struct{}
	traceDataKey   struct{}
)

// RequestData is the authenticated caller.
type RequestData struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

// TraceData ties a job run or event back to the request that caused it.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(Default(ctx), requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// TraceID is "" when ctx carries no trace data.
func TraceID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.TraceID
	}
	return ""
}

// Stamp copies the ids into m under trace_id and request_id, keeping values m
// already has.
func (td *TraceData) Stamp(m map[string]any) {
	if td == nil || m == nil {
		return
	}
	for k, v := range map[string]string{"trace_id": td.TraceID, "request_id": td.RequestID} {
		if v == "" {
			continue
		}
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
}

// TraceFromMap reads ids written by Stamp. It returns nil when both are
// missing.
func TraceFromMap(m map[string]any) *TraceData {
	traceID, _ := m["trace_id"].(string)
	requestID, _ := m["request_id"].(string)
	if traceID == "" && requestID == "" {
		return nil
	}
	return &TraceData{TraceID: traceID, RequestID: requestID}
}

// LogFields returns logger key/value pairs for whatever ctx carries.
func LogFields(ctx context.Context) []interface{} {
	var out []interface{}
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			out = append(out, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			out = append(out, "request_id", td.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		out = append(out, "user_id", rd.UserID.String(), "role", rd.Role)
	}
	return out
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
