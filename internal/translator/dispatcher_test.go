package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/internal/config"
	"github.com/nerdneilsfield/go-loctree-translator/internal/terminology"
	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
)

// mockProvider 记录调用次数与并发水位
type mockProvider struct {
	mu       sync.Mutex
	calls    int
	inflight int64
	high     int64
	delay    time.Duration
	handler  func(call int, req *providers.Request) (*providers.Response, error)
}

func (m *mockProvider) Chat(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	cur := atomic.AddInt64(&m.inflight, 1)
	defer atomic.AddInt64(&m.inflight, -1)
	for {
		high := atomic.LoadInt64(&m.high)
		if cur <= high || atomic.CompareAndSwapInt64(&m.high, high, cur) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return m.handler(call, req)
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// echoTranslate 把请求里的每个 text 加前缀后原样按 id 返回
func echoTranslate(req *providers.Request) (*providers.Response, error) {
	var items []wireItem
	if err := json.Unmarshal([]byte(req.UserContent), &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Text = "译:" + items[i].Text
	}
	body, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return &providers.Response{Text: string(body), TokensIn: 10, TokensOut: 5}, nil
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.Timeout = time.Second
	s.InitialBackoff = time.Millisecond
	s.MaxBackoff = 5 * time.Millisecond
	return s
}

func singleUnitBatches(strategy config.Strategy, texts ...string) []*Batch {
	var units []terminology.SubstitutedUnit
	for i, text := range texts {
		units = append(units, subUnit(fmt.Sprintf("U%03d", i), text, strategy.Name))
	}
	// 预算 1 字节时每个单元都独占批次
	return BuildBatches(units, []config.Strategy{strategy}, 1, zap.NewNop())
}

func TestDispatchSuccess(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{handler: func(_ int, req *providers.Request) (*providers.Response, error) {
		return echoTranslate(req)
	}}

	batches := singleUnitBatches(strategy, "一", "二", "三")
	require.Len(t, batches, 3)

	var progress []int
	var progressMu sync.Mutex

	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, fastSettings(), zap.NewNop())
	results, stats, err := d.Dispatch(context.Background(), batches, func(done, total int) {
		progressMu.Lock()
		progress = append(progress, done)
		progressMu.Unlock()
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, "译:"+r.Unit.SourceText, r.Text)
	}

	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 0, stats.Retries)
	assert.Equal(t, 0, stats.FallbackUnits)
	assert.Equal(t, 30, stats.TokensIn)
	assert.Equal(t, 15, stats.TokensOut)

	progressMu.Lock()
	assert.Len(t, progress, 3)
	progressMu.Unlock()
}

func TestDispatchRetryThenSuccess(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{handler: func(call int, req *providers.Request) (*providers.Response, error) {
		if call == 1 {
			return nil, providers.NewError("server_error", "一时的なエラー")
		}
		return echoTranslate(req)
	}}

	batches := singleUnitBatches(strategy, "一")
	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, fastSettings(), zap.NewNop())

	results, stats, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 2, mock.callCount())
	assert.Equal(t, 1, stats.Retries)
	assert.Equal(t, 0, stats.FallbackUnits)
}

func TestDispatchExhaustionFallsBack(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{handler: func(int, *providers.Request) (*providers.Response, error) {
		return nil, providers.NewError("server_error", "ずっと落ちている")
	}}

	settings := fastSettings()
	settings.MaxRetries = 1

	batches := singleUnitBatches(strategy, "一", "二")
	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, settings, zap.NewNop())

	results, stats, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, r.Unit.SourceText, r.Text)
	}
	// 每批 1 次首试 + 1 次重试
	assert.Equal(t, 4, mock.callCount())
	assert.Equal(t, 2, stats.FallbackUnits)
	assert.Equal(t, 2, stats.Retries)
}

func TestDispatchTimeoutAttempts(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{
		delay: 200 * time.Millisecond,
		handler: func(int, *providers.Request) (*providers.Response, error) {
			return nil, fmt.Errorf("unreachable")
		},
	}

	settings := fastSettings()
	settings.Timeout = 10 * time.Millisecond
	settings.MaxRetries = 4

	batches := singleUnitBatches(strategy, "一")
	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, settings, zap.NewNop())

	results, stats, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	// max_retries=4 时每批总计 5 次尝试
	assert.Equal(t, 5, mock.callCount())
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "一", results[0].Text)
	assert.Equal(t, 1, stats.FallbackUnits)
}

func TestDispatchWorkerCeiling(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{
		delay: 20 * time.Millisecond,
		handler: func(_ int, req *providers.Request) (*providers.Response, error) {
			return echoTranslate(req)
		},
	}

	settings := fastSettings()
	settings.MaxWorkers = 3

	batches := singleUnitBatches(strategy, "一", "二", "三", "四", "五", "六", "七", "八")
	require.Len(t, batches, 8)

	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, settings, zap.NewNop())
	_, _, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt64(&mock.high), int64(3))
}

func TestDispatchCancelDiscardsResults(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{handler: func(_ int, req *providers.Request) (*providers.Response, error) {
		return echoTranslate(req)
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batches := singleUnitBatches(strategy, "一", "二")
	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, fastSettings(), zap.NewNop())

	results, _, err := d.Dispatch(ctx, batches, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestDispatchUnknownModelFallsBack(t *testing.T) {
	strategy := testStrategy("default", "missing-model")
	batches := singleUnitBatches(strategy, "一")

	d := NewDispatcher(map[string]providers.Provider{}, fastSettings(), zap.NewNop())
	results, stats, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 1, stats.FallbackUnits)
}

func TestDispatchMisalignedResponseRetries(t *testing.T) {
	strategy := testStrategy("default", "mock-model")
	mock := &mockProvider{handler: func(call int, req *providers.Request) (*providers.Response, error) {
		if call == 1 {
			// id 集合不一致，应触发重试
			return &providers.Response{Text: `[{"id": "nope#1#x", "text": "誤り"}]`}, nil
		}
		return echoTranslate(req)
	}}

	batches := singleUnitBatches(strategy, "一")
	d := NewDispatcher(map[string]providers.Provider{"mock-model": mock}, fastSettings(), zap.NewNop())

	results, stats, err := d.Dispatch(context.Background(), batches, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, mock.callCount())
	assert.True(t, results[0].Success)
	assert.Equal(t, 1, stats.Retries)
}
