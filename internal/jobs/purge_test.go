package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/logger"
)

type countingPurger struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	err       error
}

func (p *countingPurger) Purge(ctx context.Context, retention time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.retention = retention
	return 1, p.err
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCodePurgeRunsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CodePurge{Codes: p, Interval: 10 * time.Millisecond, Retention: time.Hour, Log: logger.Discard()}.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
	assert.Equal(t, time.Hour, p.retention)
}

func TestCodePurgeSurvivesErrors(t *testing.T) {
	p := &countingPurger{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go CodePurge{Codes: p, Interval: 10 * time.Millisecond, Log: logger.Discard()}.Run(ctx)

	require.Eventually(t, func() bool { return p.count() >= 2 }, time.Second, 5*time.Millisecond)
}
