package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/callmask/golang_services/internal/masking_service/domain"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStatePublisher struct {
	mock.Mock
}

func (m *MockStatePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// sequence returns the given values in order, then repeats the last one.
func sequence(values ...float64) func() float64 {
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := values[0]
		if len(values) > 1 {
			values = values[1:]
		}
		return v
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var allocated = domain.CallAllocatedEvent{CallID: "call-1", ProxyNumber: "+21600111222"}

func newTestSimulator(pub StatePublisher, rnd func() float64, slept *[]time.Duration) *CallSimulator {
	return NewCallSimulator(pub, SimulatorConfig{
		StateSubject: "call.progress.state",
		MinDelay:     time.Second,
		MaxDelay:     3 * time.Second,
		FailureRate:  0.1,
		Rand:         rnd,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if slept != nil {
				*slept = append(*slept, d)
			}
			return ctx.Err()
		},
	}, testLogger())
}

func TestCallSimulator_FullWalk(t *testing.T) {
	pub := new(MockStatePublisher)
	var states []domain.CallState
	pub.On("Publish", mock.Anything, "call.progress.state", mock.Anything).Run(func(args mock.Arguments) {
		var ev domain.CallProgressEvent
		require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &ev))
		states = append(states, ev.State)
	}).Return(nil)

	var slept []time.Duration
	// delay, failure check per step
	sim := newTestSimulator(pub, sequence(0, 0.5, 0.5, 0.5, 0.999, 0.5), &slept)

	events, err := sim.Simulate(context.Background(), allocated)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, domain.OutcomeSuccess, ev.Outcome)
		assert.Equal(t, "call-1", ev.CallID)
	}
	assert.Equal(t, []domain.CallState{domain.CallStateRinging, domain.CallStateAnswered, domain.CallStateHangup}, states)

	require.Len(t, slept, 3)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 2*time.Second, slept[1])
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestCallSimulator_FailureEndsWalk(t *testing.T) {
	pub := new(MockStatePublisher)
	pub.On("Publish", mock.Anything, "call.progress.state", mock.Anything).Return(nil)

	// RINGING succeeds, ANSWERED fails
	sim := newTestSimulator(pub, sequence(0.5, 0.5, 0.5, 0.05), nil)

	events, err := sim.Simulate(context.Background(), allocated)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.CallStateAnswered, events[1].State)
	assert.Equal(t, domain.OutcomeFailed, events[1].Outcome)
	assert.Equal(t, "busy", events[1].Reason)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestCallSimulator_PublishErrorDoesNotStopWalk(t *testing.T) {
	pub := new(MockStatePublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats: timeout"))

	sim := newTestSimulator(pub, sequence(0.5), nil)
	events, err := sim.Simulate(context.Background(), allocated)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestCallSimulator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := newTestSimulator(nil, sequence(0.5), nil)
	events, err := sim.Simulate(ctx, allocated)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

type MockSubscriber struct {
	mock.Mock
}

func (m *MockSubscriber) SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler func(msg *nats.Msg)) error {
	args := m.Called(ctx, subject, queueGroup, handler)
	return args.Error(0)
}

func TestProgressConsumer_StartConsumingRunsWalks(t *testing.T) {
	pub := new(MockStatePublisher)
	pub.On("Publish", mock.Anything, "call.progress.state", mock.Anything).Return(nil)
	sim := newTestSimulator(pub, sequence(0.5), nil)

	sub := new(MockSubscriber)
	payload, err := json.Marshal(allocated)
	require.NoError(t, err)
	sub.On("SubscribeToSubjectWithQueue", mock.Anything, "call.progress.allocated", "call_simulator_workers", mock.AnythingOfType("func(*nats.Msg)")).
		Run(func(args mock.Arguments) {
			handler := args.Get(3).(func(*nats.Msg))
			handler(&nats.Msg{Subject: "call.progress.allocated", Data: payload})
			handler(&nats.Msg{Subject: "call.progress.allocated", Data: []byte("{not json")})
		}).
		Return(nil).Once()

	c := NewProgressConsumer(sub, sim, 4, testLogger())
	require.NoError(t, c.StartConsuming(context.Background(), "call.progress.allocated", "call_simulator_workers"))

	pub.AssertNumberOfCalls(t, "Publish", 3)
	sub.AssertExpectations(t)
}

func TestProgressConsumer_StartConsumingError(t *testing.T) {
	sub := new(MockSubscriber)
	subErr := errors.New("nats connection is not available")
	sub.On("SubscribeToSubjectWithQueue", mock.Anything, "s", "q", mock.Anything).Return(subErr).Once()

	c := NewProgressConsumer(sub, newTestSimulator(nil, sequence(0.5), nil), 1, testLogger())
	assert.ErrorIs(t, c.StartConsuming(context.Background(), "s", "q"), subErr)
}

func TestProgressConsumer_DropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	sim := NewCallSimulator(nil, SimulatorConfig{
		Rand: sequence(0.5),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			started <- struct{}{}
			<-release
			return nil
		},
	}, testLogger())

	c := NewProgressConsumer(new(MockSubscriber), sim, 1, testLogger())
	payload, err := json.Marshal(allocated)
	require.NoError(t, err)

	c.HandleMessage(context.Background(), payload)
	<-started
	c.HandleMessage(context.Background(), payload) // dropped, the only slot is busy

	close(release)
	c.Wait()
	assert.Len(t, started, 2, "only the first walk should have run its remaining steps")
}

func TestProgressConsumer_LateDeliveryAfterStopIsDropped(t *testing.T) {
	var mu sync.Mutex
	walks := 0
	sim := NewCallSimulator(nil, SimulatorConfig{
		Rand: sequence(0.5),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			mu.Lock()
			walks++
			mu.Unlock()
			return nil
		},
	}, testLogger())

	var handler func(*nats.Msg)
	sub := new(MockSubscriber)
	sub.On("SubscribeToSubjectWithQueue", mock.Anything, "s", "q", mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(3).(func(*nats.Msg))
		}).
		Return(nil).Once()

	c := NewProgressConsumer(sub, sim, 4, testLogger())
	require.NoError(t, c.StartConsuming(context.Background(), "s", "q"))

	payload, err := json.Marshal(allocated)
	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.NotPanics(t, func() { handler(&nats.Msg{Subject: "s", Data: payload}) })
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, walks)
}
