package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"
)

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(rec *recorder, jitter time.Duration) Policy {
	return Policy{
		MaxRetries:    5,
		BackoffBase:   time.Second,
		BackoffFactor: 2,
		MaxBackoff:    5 * time.Second,
		Jitter:        func() time.Duration { return jitter },
		Sleep:         rec.sleep,
	}
}

func TestDoRetriesThrottlingThenSucceeds(t *testing.T) {
	for k := 0; k < 5; k++ {
		t.Run(fmt.Sprintf("%d throttles", k), func(t *testing.T) {
			rec := &recorder{}
			calls := 0
			got, err := Do(context.Background(), testPolicy(rec, 500*time.Millisecond), "extract", func(context.Context) (string, error) {
				calls++
				if calls <= k {
					return "", Throttled("extract", errors.New("ThrottlingException"))
				}
				return "fields", nil
			})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != "fields" {
				t.Errorf("Expected fields, got %q", got)
			}
			if calls != k+1 {
				t.Errorf("Expected %d calls, got %d", k+1, calls)
			}
			if len(rec.waits) != k {
				t.Fatalf("Expected %d waits, got %d", k, len(rec.waits))
			}
			for i, w := range rec.waits {
				if w > 5*time.Second {
					t.Errorf("wait %d exceeds max backoff: %v", i, w)
				}
				if i > 0 && w < rec.waits[i-1] {
					t.Errorf("wait %d decreased: %v < %v", i, w, rec.waits[i-1])
				}
			}
		})
	}
}

func TestDoRandomJitterStaysWithinBounds(t *testing.T) {
	rec := &recorder{}
	p := testPolicy(rec, 0)
	p.Jitter = nil
	p.MaxRetries = 8

	_, err := Do(context.Background(), p, "call", func(context.Context) (int, error) {
		return 0, Transient("call", io.ErrUnexpectedEOF)
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	for i, w := range rec.waits {
		if w > p.MaxBackoff {
			t.Errorf("wait %d exceeds max backoff: %v", i, w)
		}
		if i > 0 && w < rec.waits[i-1] {
			t.Errorf("wait %d decreased: %v < %v", i, w, rec.waits[i-1])
		}
	}
}

func TestDoPermanentErrorIsNotRetried(t *testing.T) {
	rec := &recorder{}
	calls := 0
	permanent := Permanent("save", errors.New("access denied"))

	_, err := Do(context.Background(), testPolicy(rec, 0), "save", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(rec.waits) != 0 {
		t.Errorf("Expected no waits, got %v", rec.waits)
	}
}

func TestDoUnclassifiedErrorIsFatal(t *testing.T) {
	rec := &recorder{}
	calls := 0
	boom := errors.New("validation failed")

	err := Run(context.Background(), testPolicy(rec, 0), "op", func(context.Context) error {
		calls++
		return boom
	})
	if err != boom {
		t.Errorf("Expected error returned unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	rec := &recorder{}
	calls := 0
	last := Throttled("op", errors.New("slow down"))

	err := Run(context.Background(), testPolicy(rec, 0), "op", func(context.Context) error {
		calls++
		return last
	})
	if err != last {
		t.Errorf("Expected last error, got %v", err)
	}
	if calls != 6 {
		t.Errorf("Expected 1 call plus 5 retries, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("Expected waits %v, got %v", want, rec.waits)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], rec.waits[i])
		}
	}
}

func TestDoStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := Run(ctx, p, "op", func(context.Context) error {
		calls++
		return Transient("op", errors.New("reset"))
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"throttled", Throttled("op", errors.New("x")), Throttling},
		{"wrapped transient", fmt.Errorf("call: %w", Transient("op", errors.New("x"))), TransientFailure},
		{"permanent", Permanent("op", errors.New("x")), Fatal},
		{"status 429", FromStatus("op", 429, nil), Throttling},
		{"status 503", FromStatus("op", 503, nil), TransientFailure},
		{"status 408", FromStatus("op", 408, nil), TransientFailure},
		{"status 400", FromStatus("op", 400, nil), Fatal},
		{"net timeout", timeoutErr{}, TransientFailure},
		{"deadline", context.DeadlineExceeded, TransientFailure},
		{"conn reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, TransientFailure},
		{"unexpected eof", io.ErrUnexpectedEOF, TransientFailure},
		{"plain", errors.New("bad input"), Fatal},
		{"nil", nil, Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	err := FromStatus("ocr.start", 503, errors.New("unavailable"))
	if got := err.Error(); got != "ocr.start: transient error (status 503): unavailable" {
		t.Errorf("Unexpected message: %s", got)
	}
	if !errors.Is(err, err.(*RemoteError).Err) {
		t.Error("Expected RemoteError to unwrap to its cause")
	}
}
