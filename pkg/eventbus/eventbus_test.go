package eventbus

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type progress struct {
	done int
}

type finished struct{}

func bufferedEntry(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(level)
	return logrus.NewEntry(log), &buf
}

func TestPublisher_Subscribe(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var got []int
	bus.Subscribe(func(e *progress) { got = append(got, e.done) })
	bus.Subscribe(func(*finished) { t.Error("should not be called") })

	bus.Publish(&progress{done: 1})
	bus.Publish(&progress{done: 2})
	require.Equal(t, []int{1, 2}, got)
	require.Equal(t, 2, bus.SubscribersCount())

	bus.Clear()
	require.Zero(t, bus.SubscribersCount())
	bus.Publish(&progress{done: 3})
	require.Equal(t, []int{1, 2}, got)
}

func TestPublisher_NoSubscribersIsQuiet(t *testing.T) {
	t.Parallel()

	log, buf := bufferedEntry(logrus.InfoLevel)
	bus := New(log)
	bus.Subscribe(func(*finished) {})
	bus.Publish(&progress{})
	require.Empty(t, buf.String())

	require.ErrorIs(t, bus.PublishE(&progress{}), ErrNoSubscribers)
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Parallel()

	log, buf := bufferedEntry(logrus.ErrorLevel)
	bus := New(log)

	var calls []string
	bus.Subscribe(func(*progress) { calls = append(calls, "first") })
	bus.Subscribe(func(*progress) { panic("intentional panic for testing") })
	bus.Subscribe(func(*progress) { calls = append(calls, "third") })

	require.NotPanics(t, func() { bus.Publish(&progress{}) })
	require.Equal(t, []string{"first", "third"}, calls)
	require.Contains(t, buf.String(), "handler failed")
	require.Contains(t, buf.String(), "intentional panic for testing")
}

func TestPublisher_PublishE(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	bus := New(nil)
	ran := 0
	bus.Subscribe(func(*progress) error { ran++; return nil })
	bus.Subscribe(func(*progress) error { ran++; return boom })
	bus.Subscribe(func(*progress) (int, error) { ran++; return 0, nil })
	bus.Subscribe(func(*progress) { ran++; panic("nope") })

	err := bus.PublishE(&progress{})
	require.Equal(t, 4, ran)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrInvalidHandlerReturn)
	require.ErrorIs(t, err, ErrHandlerPanicked)

	bus.Clear()
	bus.Subscribe(func(*progress) error { return nil })
	require.NoError(t, bus.PublishE(&progress{}))
}

func TestPublisher_SubscribeRejectsNonFunc(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(nil).Subscribe(42) })
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()

	require.True(t, MatchSignature(func(*progress) {}, []any{&progress{}}))
	require.False(t, MatchSignature(func(*progress) {}, []any{&finished{}}))
	require.False(t, MatchSignature(func(*progress) {}, []any{}))
	require.False(t, MatchSignature(func(*progress) {}, []any{&progress{}, &progress{}}))
	require.True(t, MatchSignature(func(*progress) {}, []any{nil}))
	require.False(t, MatchSignature(func(progress) {}, []any{nil}))
	require.True(t, MatchSignature(func(context.Context) {}, []any{context.Background()}))
	require.False(t, MatchSignature("not a func", []any{}))
}
