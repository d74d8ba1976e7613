package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cachersdb/cachers/lib/broker"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// waitToken creates a token and a channel that receives the terminal
// response once it resolves
func waitToken(t *testing.T, id uint64) (*broker.Token, chan *broker.Response) {
	t.Helper()

	token := broker.NewToken(id, nil)
	ch := make(chan *broker.Response, 1)
	if _, delivered, err := token.GetOrBind(func(r *broker.Response) {
		ch <- r
	}); err != nil {
		t.Fatalf("GetOrBind failed: %v", err)
	} else if delivered {
		t.Fatalf("token resolved before any fetch ran")
	}
	return token, ch
}

func awaitResponse(t *testing.T, ch chan *broker.Response) *broker.Response {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for response")
		return nil
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestFetchOutcomes(t *testing.T) {
	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		switch key {
		case "hit":
			return []byte("hdr"), []byte("value"), nil
		case "absent":
			return nil, nil, nil
		default:
			return nil, nil, errors.New("backend unavailable")
		}
	}

	pool := NewPool(2, 4, time.Second, fetcher, nil)
	defer pool.Close()

	t.Run("Complete", func(t *testing.T) {
		token, ch := waitToken(t, 1)
		if err := pool.Submit(context.Background(), "hit", token); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		resp := awaitResponse(t, ch)
		if resp.State() != broker.StateComplete {
			t.Fatalf("expected Complete, got %s", resp.State())
		}
		if string(resp.Data()) != "value" || string(resp.Header()) != "hdr" {
			t.Fatalf("unexpected payload: header=%q data=%q", resp.Header(), resp.Data())
		}
	})

	t.Run("None", func(t *testing.T) {
		token, ch := waitToken(t, 2)
		if err := pool.Submit(context.Background(), "absent", token); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		resp := awaitResponse(t, ch)
		if resp.State() != broker.StateNone {
			t.Fatalf("expected None, got %s", resp.State())
		}
	})

	t.Run("Error", func(t *testing.T) {
		token, ch := waitToken(t, 3)
		if err := pool.Submit(context.Background(), "boom", token); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		resp := awaitResponse(t, ch)
		if resp.State() != broker.StateError {
			t.Fatalf("expected Error, got %s", resp.State())
		}
		if resp.Err() == nil {
			t.Fatalf("error response without cause")
		}
	})
}

func TestOnResultRunsBeforeResolve(t *testing.T) {
	var stored atomic.Bool

	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		return nil, []byte("v"), nil
	}
	onResult := func(res Result) {
		if res.Key != "k" || string(res.Value) != "v" {
			t.Errorf("unexpected result: %+v", res)
		}
		stored.Store(true)
	}

	pool := NewPool(1, 1, 0, fetcher, onResult)
	defer pool.Close()

	token, ch := waitToken(t, 1)
	if err := pool.Submit(context.Background(), "k", token); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	awaitResponse(t, ch)

	if !stored.Load() {
		t.Fatalf("onResult did not run before the token resolved")
	}
}

func TestFetchTimeout(t *testing.T) {
	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(10 * time.Second):
			return nil, []byte("late"), nil
		}
	}

	pool := NewPool(1, 1, 50*time.Millisecond, fetcher, nil)
	defer pool.Close()

	token, ch := waitToken(t, 1)
	if err := pool.Submit(context.Background(), "slow", token); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	resp := awaitResponse(t, ch)
	if resp.State() != broker.StateError {
		t.Fatalf("expected Error after timeout, got %s", resp.State())
	}
	if !errors.Is(resp.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", resp.Err())
	}
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	const jobs = 16

	var started sync.WaitGroup
	started.Add(1)

	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		if key == "first" {
			started.Done()
			time.Sleep(100 * time.Millisecond)
		}
		return nil, []byte(key), nil
	}

	pool := NewPool(1, jobs+1, 0, fetcher, nil)

	chans := make([]chan *broker.Response, 0, jobs)
	first, firstCh := waitToken(t, 0)
	if err := pool.Submit(context.Background(), "first", first); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	chans = append(chans, firstCh)

	started.Wait()
	for i := 1; i < jobs; i++ {
		token, ch := waitToken(t, uint64(i))
		if err := pool.Submit(context.Background(), fmt.Sprintf("key-%d", i), token); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		chans = append(chans, ch)
	}

	// all queued jobs must resolve before Close returns
	pool.Close()

	for i, ch := range chans {
		select {
		case resp := <-ch:
			if resp.State() != broker.StateComplete {
				t.Fatalf("job %d resolved as %s", i, resp.State())
			}
		default:
			t.Fatalf("job %d was not resolved by Close", i)
		}
	}
}

func TestSubmitAfterClose(t *testing.T) {
	pool := NewPool(1, 1, 0, func(ctx context.Context, key string) ([]byte, []byte, error) {
		return nil, nil, nil
	}, nil)
	pool.Close()

	token := broker.NewToken(1, nil)
	defer token.Release()

	err := pool.Submit(context.Background(), "k", token)
	if code, ok := broker.CodeOf(err); !ok || code != broker.ErrCodeClosed {
		t.Fatalf("expected closed fault, got %v", err)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	fetcher := func(ctx context.Context, key string) ([]byte, []byte, error) {
		<-block
		return nil, nil, nil
	}

	// one worker, queue of one: the second submit has to wait
	pool := NewPool(1, 1, 0, fetcher, nil)
	defer func() {
		close(block)
		pool.Close()
	}()

	t1 := broker.NewToken(1, nil)
	if err := pool.Submit(context.Background(), "a", t1); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	t2 := broker.NewToken(2, nil)
	if err := pool.Submit(context.Background(), "b", t2); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	t3 := broker.NewToken(3, nil)
	defer t3.Release()
	if err := pool.Submit(ctx, "c", t3); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
