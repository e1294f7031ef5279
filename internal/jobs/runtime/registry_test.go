package runtime

import (
	"testing"

	jobsdomain "github.com/yungbote/bonusfinder-backend/internal/domain/jobs"
)

type stubHandler string

func (s stubHandler) Type() string         { return string(s) }
func (s stubHandler) Run(_ *Context) error { return nil }

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	for _, h := range []Handler{
		stubHandler(jobsdomain.TypeExpireCoupons),
		stubHandler(jobsdomain.TypeIngestSource),
		stubHandler(jobsdomain.TypeRescoreVariants),
	} {
		if err := r.Register(h); err != nil {
			t.Fatalf("Register(%s): %v", h.Type(), err)
		}
	}

	cases := []struct {
		name string
		h    Handler
	}{
		{"nil", nil},
		{"blank type", stubHandler("  ")},
		{"duplicate", stubHandler(jobsdomain.TypeIngestSource)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := r.Register(tc.h); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	if _, ok := r.Get(jobsdomain.TypeRescoreVariants); !ok {
		t.Fatalf("expected rescore handler")
	}
	if _, ok := r.Get("unknown"); ok {
		t.Fatalf("unexpected handler for unknown type")
	}
}

func TestRegistryByQueue(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(stubHandler(jobsdomain.TypeRescoreVariants))
	_ = r.Register(stubHandler(jobsdomain.TypeIngestSource))
	_ = r.Register(stubHandler(jobsdomain.TypeExpireCoupons))

	got := r.ByQueue()
	light := got[jobsdomain.QueueLight]
	if len(light) != 2 || light[0] != jobsdomain.TypeExpireCoupons || light[1] != jobsdomain.TypeRescoreVariants {
		t.Fatalf("light queue: got %v", light)
	}
	heavy := got[jobsdomain.QueueHeavy]
	if len(heavy) != 1 || heavy[0] != jobsdomain.TypeIngestSource {
		t.Fatalf("heavy queue: got %v", heavy)
	}
}
