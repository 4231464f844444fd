package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Wimboro/finmail/internal/pipeline"
)

type runnerStub struct {
	RunFunc func(ctx context.Context, account string) (pipeline.Result, error)
}

func (s *runnerStub) Run(ctx context.Context, account string) (pipeline.Result, error) {
	return s.RunFunc(ctx, account)
}

func TestExclusive_SerializesRuns(t *testing.T) {
	var active, maxActive int32
	stub := &runnerStub{
		RunFunc: func(ctx context.Context, account string) (pipeline.Result, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return pipeline.Result{Account: account, Processed: 1}, nil
		},
	}

	e := NewExclusive(stub)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Run(context.Background(), "personal"); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("observed %d concurrent runs, want 1", got)
	}
}

func TestExclusive_PassesThroughResultAndError(t *testing.T) {
	wantErr := errors.New("invalid grant")
	stub := &runnerStub{
		RunFunc: func(ctx context.Context, account string) (pipeline.Result, error) {
			return pipeline.Result{Account: account, Processed: 3}, wantErr
		},
	}

	res, err := NewExclusive(stub).Run(context.Background(), "business")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if res.Account != "business" || res.Processed != 3 {
		t.Errorf("res = %+v", res)
	}
}
