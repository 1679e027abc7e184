package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/push-dispatcher/internal/expo"
)

type senderFunc func(ctx context.Context, msg expo.Message) (expo.Ticket, error)

func (f senderFunc) Send(ctx context.Context, msg expo.Message) (expo.Ticket, error) {
	return f(ctx, msg)
}

func messages(n int) []expo.Message {
	msgs := make([]expo.Message, n)
	for i := range msgs {
		msgs[i] = expo.Message{To: fmt.Sprintf("ExponentPushToken[%d]", i), Title: "t", Body: "b"}
	}
	return msgs
}

func TestSendAllPreservesOrder(t *testing.T) {
	d := New(senderFunc(func(_ context.Context, msg expo.Message) (expo.Ticket, error) {
		if msg.To == "ExponentPushToken[0]" {
			time.Sleep(20 * time.Millisecond)
		}
		return expo.Ticket{Status: "ok", ID: msg.To}, nil
	}), zerolog.Nop())

	msgs := messages(5)
	outcomes := d.SendAll(context.Background(), msgs)

	require.Len(t, outcomes, len(msgs))
	for i, o := range outcomes {
		assert.Equal(t, msgs[i].To, o.Message.To)
		assert.Equal(t, msgs[i].To, o.Ticket.ID)
		assert.True(t, o.OK())
	}
	assert.False(t, AnyFailed(outcomes))
}

func TestSendAllLaunchesEverySendConcurrently(t *testing.T) {
	const n = 8
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})
	go func() {
		started.Wait()
		close(release)
	}()

	d := New(senderFunc(func(context.Context, expo.Message) (expo.Ticket, error) {
		started.Done()
		select {
		case <-release:
			return expo.Ticket{Status: "ok"}, nil
		case <-time.After(2 * time.Second):
			return expo.Ticket{}, errors.New("sends were not concurrent")
		}
	}), zerolog.Nop())

	outcomes := d.SendAll(context.Background(), messages(n))
	assert.False(t, AnyFailed(outcomes))
}

func TestSendAllWaitsForAllAfterFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	d := New(senderFunc(func(_ context.Context, msg expo.Message) (expo.Ticket, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if msg.To == "ExponentPushToken[1]" {
			return expo.Ticket{}, errors.New("provider unavailable")
		}
		time.Sleep(10 * time.Millisecond)
		return expo.Ticket{Status: "ok"}, nil
	}), zerolog.Nop())

	outcomes := d.SendAll(context.Background(), messages(4))

	assert.Equal(t, 4, calls)
	assert.True(t, AnyFailed(outcomes))
	assert.Equal(t, Summary{Total: 4, Succeeded: 3, Failed: 1}, Summarize(outcomes))
	assert.EqualError(t, outcomes[1].Err, "provider unavailable")
}

func TestSendAllIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(senderFunc(func(ctx context.Context, _ expo.Message) (expo.Ticket, error) {
		if err := ctx.Err(); err != nil {
			return expo.Ticket{}, err
		}
		return expo.Ticket{Status: "ok"}, nil
	}), zerolog.Nop())

	outcomes := d.SendAll(ctx, messages(2))
	assert.False(t, AnyFailed(outcomes))
}

func TestErrorTicketIsNotAFailure(t *testing.T) {
	d := New(senderFunc(func(context.Context, expo.Message) (expo.Ticket, error) {
		return expo.Ticket{Status: "error", Message: "DeviceNotRegistered"}, nil
	}), zerolog.Nop())

	outcomes := d.SendAll(context.Background(), messages(1))
	assert.False(t, AnyFailed(outcomes))
}

func TestSenderPanicBecomesFailure(t *testing.T) {
	d := New(senderFunc(func(context.Context, expo.Message) (expo.Ticket, error) {
		panic("boom")
	}), zerolog.Nop())

	outcomes := d.SendAll(context.Background(), messages(2))
	assert.Equal(t, Summary{Total: 2, Failed: 2}, Summarize(outcomes))
}
