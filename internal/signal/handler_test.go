package signal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalCancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handleSignal()

	require.Error(t, h.Context().Err())
	assert.Equal(t, context.Canceled, h.Context().Err())

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after a signal")
	}
}

func TestRepeatedSignalsHaveOneEffect(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handleSignal()
	h.handleSignal()
	h.handleSignal()

	require.Error(t, h.Context().Err())
	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed")
	}
}

func TestStopCancelsContextAndIsIdempotent(t *testing.T) {
	h := NewHandler(context.Background())

	h.Stop()
	h.Stop()

	assert.Error(t, h.Context().Err())
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()

	assert.Error(t, h.Context().Err())
}

func TestFreshHandlerIsLive(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	assert.NoError(t, h.Context().Err())
	select {
	case <-h.Interrupted():
		t.Fatal("interrupted channel should start open")
	default:
	}
}
