package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	authdomain "github.com/callmask/golang_services/internal/auth_service/domain"
	mappingvault "github.com/callmask/golang_services/internal/mapping_vault"
	"github.com/callmask/golang_services/internal/masking_service/domain"
	pooldomain "github.com/callmask/golang_services/internal/proxy_pool_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*authdomain.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authdomain.Claims), args.Error(1)
}

type MockProxyAllocator struct {
	mock.Mock
}

func (m *MockProxyAllocator) Allocate(ctx context.Context, callID string, mp mappingvault.Mapping) (*pooldomain.CallSession, error) {
	args := m.Called(ctx, callID, mp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pooldomain.CallSession), args.Error(1)
}

type MockProgressNotifier struct {
	mock.Mock
}

func (m *MockProgressNotifier) NotifyAllocated(ctx context.Context, event domain.CallAllocatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type panickingNotifier struct{}

func (panickingNotifier) NotifyAllocated(context.Context, domain.CallAllocatedEvent) error {
	panic("broker client bug")
}

// blockingNotifier waits for its context, like a broker that never answers.
type blockingNotifier struct {
	done chan error
}

func (n blockingNotifier) NotifyAllocated(ctx context.Context, _ domain.CallAllocatedEvent) error {
	<-ctx.Done()
	n.done <- ctx.Err()
	return ctx.Err()
}

var (
	validRequest = domain.MaskRequest{CallerReal: "+21612345678", CalleeReal: "+21687654321"}
	testNow      = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestOrchestrator(v TokenVerifier, a ProxyAllocator, n ProgressNotifier) *Orchestrator {
	return NewOrchestrator(v, a, n, OrchestratorConfig{
		NotifyTimeout: 50 * time.Millisecond,
		NewCallID:     func() string { return "call-1" },
		Now:           func() time.Time { return testNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOrchestrator_MaskCall_Success(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockTokenVerifier)
	allocator := new(MockProxyAllocator)
	notifier := new(MockProgressNotifier)

	expiresAt := testNow.Add(24 * time.Hour)
	verifier.On("Verify", ctx, "good-token").Return(&authdomain.Claims{Subject: "alice", Scope: authdomain.ScopeUser}, nil).Once()
	allocator.On("Allocate", ctx, "call-1", mappingvault.Mapping{CallerReal: "+21612345678", CalleeReal: "+21687654321"}).
		Return(&pooldomain.CallSession{CallID: "call-1", ProxyNumber: "+21600111222", CreatedAt: testNow, ExpiresAt: expiresAt}, nil).Once()
	notifier.On("NotifyAllocated", mock.Anything, domain.CallAllocatedEvent{
		CallID: "call-1", ProxyNumber: "+21600111222", Subject: "alice", ExpiresAt: expiresAt, OccurredAt: testNow,
	}).Return(nil).Once()

	o := newTestOrchestrator(verifier, allocator, notifier)
	call, err := o.MaskCall(ctx, "good-token", validRequest)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, &domain.MaskedCall{CallID: "call-1", ProxyNumber: "+21600111222", ExpiresAt: expiresAt}, call)
	verifier.AssertExpectations(t)
	allocator.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestOrchestrator_MaskCall_ValidationBeforeAuth(t *testing.T) {
	verifier := new(MockTokenVerifier)
	allocator := new(MockProxyAllocator)
	o := newTestOrchestrator(verifier, allocator, new(MockProgressNotifier))

	for _, token := range []string{"", "expired-token", "good-token"} {
		_, err := o.MaskCall(context.Background(), token, domain.MaskRequest{CallerReal: "+21612345678", CalleeReal: "+21612345678"})
		var vErr *domain.ValidationError
		require.True(t, errors.As(err, &vErr), "token %q", token)
		assert.Equal(t, "callee_real", vErr.Field)
	}

	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_MaskCall_AuthErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	for _, authErr := range []error{authdomain.ErrTokenExpired, authdomain.ErrTokenInvalid} {
		verifier := new(MockTokenVerifier)
		allocator := new(MockProxyAllocator)
		verifier.On("Verify", ctx, "tok").Return(nil, authErr).Once()

		o := newTestOrchestrator(verifier, allocator, new(MockProgressNotifier))
		_, err := o.MaskCall(ctx, "tok", validRequest)
		assert.ErrorIs(t, err, authErr)
		allocator.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestOrchestrator_MaskCall_PoolExhausted(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockTokenVerifier)
	allocator := new(MockProxyAllocator)
	notifier := new(MockProgressNotifier)
	verifier.On("Verify", ctx, "tok").Return(&authdomain.Claims{Subject: "alice", Scope: authdomain.ScopeUser}, nil)
	allocator.On("Allocate", ctx, "call-1", mock.Anything).Return(nil, pooldomain.ErrPoolExhausted)

	o := newTestOrchestrator(verifier, allocator, notifier)
	_, err := o.MaskCall(ctx, "tok", validRequest)
	assert.ErrorIs(t, err, pooldomain.ErrPoolExhausted)
	o.Wait()
	notifier.AssertNotCalled(t, "NotifyAllocated", mock.Anything, mock.Anything)
}

func TestOrchestrator_MaskCall_NotifierFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockTokenVerifier)
	verifier.On("Verify", ctx, "tok").Return(&authdomain.Claims{Subject: "alice", Scope: authdomain.ScopeUser}, nil)
	session := &pooldomain.CallSession{CallID: "call-1", ProxyNumber: "+21600111222", ExpiresAt: testNow.Add(24 * time.Hour)}

	t.Run("Error", func(t *testing.T) {
		allocator := new(MockProxyAllocator)
		allocator.On("Allocate", ctx, "call-1", mock.Anything).Return(session, nil)
		notifier := new(MockProgressNotifier)
		notifier.On("NotifyAllocated", mock.Anything, mock.Anything).Return(errors.New("nats: connection closed")).Once()

		o := newTestOrchestrator(verifier, allocator, notifier)
		call, err := o.MaskCall(ctx, "tok", validRequest)
		require.NoError(t, err)
		assert.Equal(t, "+21600111222", call.ProxyNumber)
		o.Wait()
		notifier.AssertExpectations(t)
	})

	t.Run("Panic", func(t *testing.T) {
		allocator := new(MockProxyAllocator)
		allocator.On("Allocate", ctx, "call-1", mock.Anything).Return(session, nil)

		o := newTestOrchestrator(verifier, allocator, panickingNotifier{})
		call, err := o.MaskCall(ctx, "tok", validRequest)
		require.NoError(t, err)
		assert.Equal(t, "call-1", call.CallID)
		assert.NotPanics(t, o.Wait)
	})

	t.Run("SlowBrokerIsBoundedAndOutlivesRequest", func(t *testing.T) {
		allocator := new(MockProxyAllocator)
		allocator.On("Allocate", mock.Anything, "call-1", mock.Anything).Return(session, nil)
		done := make(chan error, 1)

		reqCtx, cancel := context.WithCancel(ctx)
		o := newTestOrchestrator(verifier, allocator, blockingNotifier{done: done})
		verifier.On("Verify", reqCtx, "tok").Return(&authdomain.Claims{Subject: "alice", Scope: authdomain.ScopeUser}, nil)

		_, err := o.MaskCall(reqCtx, "tok", validRequest)
		require.NoError(t, err)
		cancel()

		select {
		case notifyErr := <-done:
			assert.ErrorIs(t, notifyErr, context.DeadlineExceeded, "request cancellation must not cut delivery short")
		case <-time.After(time.Second):
			t.Fatal("notifier timeout not applied")
		}
		o.Wait()
	})
}
