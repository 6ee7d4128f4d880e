package async

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conductorhq/conductor/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestSafeGo_RunsTask(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), testLogger(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Task did not run")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), testLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Task did not run")
	}
	// Reaching here without crashing the test binary is the assertion
}

func TestSafeGo_SurvivesParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	SafeGo(parent, testLogger(), time.Second, "detached task", func(ctx context.Context) error {
		done <- ctx.Err()
		return nil
	})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected detached context to be live, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Task did not run")
	}
}

func TestSafeGo_LogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	done := make(chan struct{})
	SafeGo(context.Background(), logger, time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("publish failed")
	})

	<-done
	// The log write races the channel close by a hair; give it a beat
	time.Sleep(50 * time.Millisecond)
	if !bytes.Contains(buf.Bytes(), []byte("publish failed")) {
		t.Error("Expected error to be logged")
	}
}
