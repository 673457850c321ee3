package timeouts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/autoenrol/internal/app/system/timeouts"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	timeouts.Reset()
	got := timeouts.Current()
	want := timeouts.Config{
		Ping:   timeouts.DefaultPing,
		Short:  timeouts.DefaultShort,
		Medium: timeouts.DefaultMedium,
		Long:   timeouts.DefaultLong,
	}
	if got != want {
		t.Errorf("Current() = %+v, want %+v", got, want)
	}
}

func TestConfigure_IgnoresZeroValues(t *testing.T) {
	t.Cleanup(timeouts.Reset)
	timeouts.Reset()

	timeouts.Configure(timeouts.Config{Short: 7 * time.Second})

	if timeouts.Short() != 7*time.Second {
		t.Errorf("Short() = %v, want 7s", timeouts.Short())
	}
	if timeouts.Medium() != timeouts.DefaultMedium {
		t.Errorf("Medium() = %v, want default %v", timeouts.Medium(), timeouts.DefaultMedium)
	}
	if timeouts.Ping() != timeouts.DefaultPing {
		t.Errorf("Ping() = %v, want default %v", timeouts.Ping(), timeouts.DefaultPing)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := timeouts.WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test op")
	defer cancel()

	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}
