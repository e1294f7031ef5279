package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"429", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"502", &StatusError{Code: http.StatusBadGateway}, true},
		{"404", &StatusError{Code: http.StatusNotFound}, false},
		{"plain", errors.New("decode feed: bad json"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Fatalf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if got := RetryAfterDuration(resp, time.Second, 0); got != time.Second {
		t.Fatalf("fallback: got %s", got)
	}
	resp.Header.Set("Retry-After", "7")
	if got := RetryAfterDuration(resp, time.Second, 0); got != 7*time.Second {
		t.Fatalf("header: got %s", got)
	}
	if got := RetryAfterDuration(resp, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("cap: got %s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("nil response: got %s", got)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		want := 100 * time.Millisecond << attempt
		if want > time.Second {
			want = time.Second
		}
		got := Backoff(attempt, 100*time.Millisecond, time.Second)
		low := time.Duration(float64(want) * 0.79)
		high := time.Duration(float64(want) * 1.21)
		if got < low || got > high {
			t.Fatalf("attempt %d: %s outside [%s, %s]", attempt, got, low, high)
		}
	}
	if got := Backoff(3, 0, time.Second); got != 0 {
		t.Fatalf("zero base: got %s", got)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
