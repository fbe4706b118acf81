package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoller_StopsOnAccepted(t *testing.T) {
	calls := 0
	p := Poller[int]{
		MaxAttempts: 5,
		Interval:    time.Millisecond,
		Accept:      func(v int) bool { return v >= 3 },
	}

	res := p.Run(context.Background(), func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	if !res.Accepted || res.Value != 3 {
		t.Errorf("got %+v, want accepted value 3", res)
	}
	if calls != 3 || res.Attempts != 3 {
		t.Errorf("calls = %d, attempts = %d, want 3", calls, res.Attempts)
	}
}

func TestPoller_ReturnsBestSoFar(t *testing.T) {
	accuracies := []float64{80, 25, 60}
	i := 0
	p := Poller[float64]{
		MaxAttempts: 3,
		Interval:    time.Millisecond,
		Accept:      func(v float64) bool { return v <= 10 },
		Prefer:      func(candidate, best float64) bool { return candidate < best },
	}

	res := p.Run(context.Background(), func(context.Context) (float64, error) {
		v := accuracies[i]
		i++
		return v, nil
	})

	if res.Accepted {
		t.Error("nothing met the threshold")
	}
	if !res.Found || res.Value != 25 {
		t.Errorf("best = %v (found %v), want 25", res.Value, res.Found)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
}

func TestPoller_AllAttemptsFail(t *testing.T) {
	boom := errors.New("provider down")
	p := Poller[string]{MaxAttempts: 2, Interval: time.Millisecond}

	res := p.Run(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})

	if res.Found || res.Accepted {
		t.Errorf("unexpected result %+v", res)
	}
	if !errors.Is(res.LastErr, boom) {
		t.Errorf("LastErr = %v", res.LastErr)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestPoller_PerAttemptTimeout(t *testing.T) {
	p := Poller[string]{MaxAttempts: 2, PerAttemptTimeout: 20 * time.Millisecond, Interval: time.Millisecond}

	start := time.Now()
	res := p.Run(context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	if !errors.Is(res.LastErr, context.DeadlineExceeded) {
		t.Errorf("LastErr = %v", res.LastErr)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if time.Since(start) > time.Second {
		t.Errorf("took %v", time.Since(start))
	}
}

func TestPoller_ParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Poller[int]{MaxAttempts: 10, Interval: time.Millisecond}

	res := p.Run(ctx, func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("interrupted")
	})

	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}
