package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/errors"
)

type call struct {
	op     string
	sender string
	tokens []string
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeEngine) record(op, sender string, tokens []string) (*engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: op, sender: sender, tokens: tokens})
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Report{Tokens: len(tokens)}, nil
}

func (f *fakeEngine) Subscribe(_ context.Context, sender string, tokens []string) (*engine.Report, error) {
	return f.record("subscribe", sender, tokens)
}

func (f *fakeEngine) Unsubscribe(_ context.Context, sender string, tokens []string) (*engine.Report, error) {
	return f.record("unsubscribe", sender, tokens)
}

func (f *fakeEngine) Forget(_ context.Context, sender string) (*engine.Report, error) {
	return f.record("forget", sender, nil)
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(strings.ToUpper(a.String()))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseAction("reply")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFrontDoor_Dispatch(t *testing.T) {
	tests := []struct {
		action     Action
		wantOp     string
		wantTokens []string
	}{
		{ActionSubscribe, "subscribe", []string{"0140328726", "1708.05919"}},
		{ActionUnsubscribe, "unsubscribe", []string{"0140328726", "1708.05919"}},
		{ActionForget, "forget", nil},
	}

	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			eng := &fakeEngine{}
			fd := NewFrontDoor(eng, 20, nil)

			res, err := fd.Handle(context.Background(), tt.action, Envelope{
				Sender: " <user@example.invalid> ",
				Lines:  []string{"0140328726, 1708.05919"},
			})
			require.NoError(t, err)

			require.Len(t, eng.calls, 1)
			assert.Equal(t, tt.wantOp, eng.calls[0].op)
			assert.Equal(t, "user@example.invalid", eng.calls[0].sender)
			assert.Equal(t, tt.wantTokens, eng.calls[0].tokens)

			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, "user@example.invalid", res.Sender)
			assert.True(t, strings.HasPrefix(res.RunID, "msg-"))
			assert.NotNil(t, res.Report)
		})
	}
}

func TestFrontDoor_InvalidSender(t *testing.T) {
	for _, sender := range []string{"", "   ", "not-an-address", "Some User"} {
		t.Run(sender, func(t *testing.T) {
			eng := &fakeEngine{}
			fd := NewFrontDoor(eng, 20, nil)

			_, err := fd.Handle(context.Background(), ActionSubscribe, Envelope{Sender: sender, Lines: []string{"0140328726"}})
			assert.ErrorIs(t, err, errors.ErrValidation)
			assert.Empty(t, eng.calls, "engine must not be called")
		})
	}
}

func TestFrontDoor_AppliesLimits(t *testing.T) {
	eng := &fakeEngine{}
	fd := NewFrontDoor(eng, 3, nil)

	res, err := fd.Handle(context.Background(), ActionSubscribe, Envelope{
		Sender: "user@example.invalid",
		Lines:  []string{strings.Repeat("0140328726,", 1000)},
	})
	require.NoError(t, err)
	assert.Len(t, res.Tokens, 3)
	assert.Equal(t, Limits{MaxLines: 3, MaxTokensPerLine: 3, MaxTokens: 3}, fd.Limits())
}

func TestFrontDoor_EngineError(t *testing.T) {
	eng := &fakeEngine{err: errors.Internalf("disk full")}
	fd := NewFrontDoor(eng, 20, nil)

	_, err := fd.Handle(context.Background(), ActionForget, Envelope{Sender: "user@example.invalid"})
	assert.ErrorIs(t, err, errors.ErrInternal)
}

func TestFrontDoor_UnknownAction(t *testing.T) {
	eng := &fakeEngine{}
	fd := NewFrontDoor(eng, 20, nil)

	_, err := fd.Handle(context.Background(), Action("reply"), Envelope{Sender: "user@example.invalid"})
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Empty(t, eng.calls)
}
