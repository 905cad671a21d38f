package translator

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-loctree-translator/pkg/providers"
)

// Settings 派发参数，一次运行内不可变
type Settings struct {
	MaxWorkers int
	// MaxRetries 首次尝试之外的追加尝试次数
	MaxRetries int
	// Timeout 单次尝试的超时
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultSettings 返回默认派发参数
func DefaultSettings() Settings {
	return Settings{
		MaxWorkers:     4,
		MaxRetries:     3,
		Timeout:        60 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Stats 一次派发的累计计数
type Stats struct {
	Batches       int
	Retries       int
	FallbackUnits int
	TokensIn      int
	TokensOut     int
}

// Dispatcher 固定大小的工作池，按批次并发请求模型。
// 失败批次在重试穷尽后回退为原文，绝不影响兄弟批次。
type Dispatcher struct {
	providers map[string]providers.Provider
	settings  Settings
	logger    *zap.Logger
}

// NewDispatcher 创建派发器。providerMap 以模型名为键。
func NewDispatcher(providerMap map[string]providers.Provider, settings Settings, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		providers: providerMap,
		settings:  settings,
		logger:    logger,
	}
}

// Dispatch 并发处理全部批次。onProgress 在每个批次完成时回调，可为 nil。
// 上下文取消时丢弃全部部分结果并返回取消错误。
func (d *Dispatcher) Dispatch(ctx context.Context, batches []*Batch, onProgress func(completed, total int)) ([]Result, *Stats, error) {
	stats := &Stats{Batches: len(batches)}
	if len(batches) == 0 {
		return nil, stats, nil
	}

	workers := d.settings.MaxWorkers
	if workers <= 0 {
		workers = 4
	}

	batchChan := make(chan *Batch, len(batches))
	for _, batch := range batches {
		batchChan <- batch
	}
	close(batchChan)

	var (
		mu        sync.Mutex
		results   []Result
		completed int
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for batch := range batchChan {
				if ctx.Err() != nil {
					continue
				}

				d.logger.Debug("worker processing batch",
					zap.Int("workerID", workerID),
					zap.String("strategy", batch.Strategy.Name),
					zap.Int("units", len(batch.Units)))

				outcome := d.translateBatch(ctx, batch)
				if outcome.err != nil {
					d.logger.Warn("batch fell back to source text",
						zap.Int("workerID", workerID),
						zap.String("strategy", batch.Strategy.Name),
						zap.Int("units", len(batch.Units)),
						zap.Error(outcome.err))
				}

				mu.Lock()
				results = append(results, outcome.results...)
				stats.Retries += outcome.retries
				stats.TokensIn += outcome.tokensIn
				stats.TokensOut += outcome.tokensOut
				if outcome.err != nil {
					stats.FallbackUnits += len(batch.Units)
				}
				completed++
				done := completed
				mu.Unlock()

				if onProgress != nil {
					onProgress(done, len(batches))
				}
			}
		}(i)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	return results, stats, nil
}

type batchOutcome struct {
	results   []Result
	retries   int
	tokensIn  int
	tokensOut int
	err       error
}

func (d *Dispatcher) translateBatch(ctx context.Context, batch *Batch) batchOutcome {
	provider, ok := d.providers[batch.Strategy.Model]
	if !ok {
		return batchOutcome{
			results: fallbackResults(batch),
			err: &DispatchError{
				Strategy: batch.Strategy.Name,
				Model:    batch.Strategy.Model,
				Err:      providers.NewError("unknown_model", "模型没有对应的提供商: "+batch.Strategy.Model),
			},
		}
	}

	userContent, err := BuildUserContent(batch)
	if err != nil {
		return batchOutcome{
			results: fallbackResults(batch),
			err:     &DispatchError{Strategy: batch.Strategy.Name, Model: batch.Strategy.Model, Err: err},
		}
	}
	req := &providers.Request{
		SystemPrompt: BuildSystemPrompt(batch),
		UserContent:  userContent,
	}

	attempts := d.settings.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(d.settings.InitialBackoff, d.settings.MaxBackoff, attempt)
			select {
			case <-ctx.Done():
				return batchOutcome{results: fallbackResults(batch), retries: attempt - 1, err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.settings.Timeout)
		resp, err := provider.Chat(attemptCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			d.logger.Warn("chat attempt failed",
				zap.String("strategy", batch.Strategy.Name),
				zap.Int("attempt", attempt+1),
				zap.Int("maxAttempts", attempts),
				zap.Error(err))
			continue
		}

		results, err := AlignResponse(resp.Text, batch, d.logger)
		if err != nil {
			lastErr = err
			d.logger.Warn("response alignment failed",
				zap.String("strategy", batch.Strategy.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		return batchOutcome{
			results:   results,
			retries:   attempt,
			tokensIn:  resp.TokensIn,
			tokensOut: resp.TokensOut,
		}
	}

	return batchOutcome{
		results: fallbackResults(batch),
		retries: attempts - 1,
		err: &DispatchError{
			Strategy: batch.Strategy.Name,
			Model:    batch.Strategy.Model,
			Attempts: attempts,
			Err:      lastErr,
		},
	}
}

func fallbackResults(batch *Batch) []Result {
	results := make([]Result, 0, len(batch.Units))
	for _, su := range batch.Units {
		results = append(results, Result{Unit: su.Unit, Text: su.Unit.SourceText, Success: false})
	}
	return results
}

// backoffDelay 指数退避，上限封顶
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	delay := time.Duration(float64(initial) * math.Pow(2.0, float64(attempt-1)))
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}
