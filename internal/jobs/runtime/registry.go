package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
)

// Handler runs one job type. Returning nil without calling a terminal method
// on the Context marks the run succeeded.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Registry maps job types to handlers. It is filled once at startup and read
// concurrently by every worker loop.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("register job handler: nil handler")
	}
	jobType := strings.TrimSpace(h.Type())
	if jobType == "" {
		return fmt.Errorf("register job handler %T: empty job type", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("register job handler: %s registered twice", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types lists the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ByQueue groups the registered types by the queue their runs are routed to.
func (r *Registry) ByQueue() map[string][]string {
	out := map[string][]string{}
	for _, t := range r.Types() {
		q := jobsdomain.QueueFor(t)
		out[q] = append(out[q], t)
	}
	return out
}
