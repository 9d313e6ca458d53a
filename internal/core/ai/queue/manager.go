package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"carb-estimator/internal/core/ai/provider"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrClosed 隊列已關閉
var ErrClosed = errors.New("queue manager is closed")

// Job 在 worker 中執行的模型呼叫
type Job func(ctx context.Context) (*provider.Response, error)

// Request 隊列請求
type Request struct {
	Context context.Context
	Job     Job
	Result  chan Result
}

// Result 處理結果
type Result struct {
	Response *provider.Response
	Error    error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 固定數量 worker 處理有界隊列，限制同時進行的模型呼叫
type Manager struct {
	workers   int
	maxSize   int
	queue     chan *Request
	done      chan struct{}
	processed int64

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager 創建新的隊列管理器
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		workers: cfg.Queue.Workers,
		maxSize: cfg.Queue.MaxSize,
		queue:   make(chan *Request, cfg.Queue.MaxSize),
		done:    make(chan struct{}),
	}
}

// Start 啟動 worker，重複呼叫無效
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		for i := 0; i < m.workers; i++ {
			m.wg.Add(1)
			go m.worker(i)
		}
		common.LogInfo("Queue workers started",
			zap.Int("workers", m.workers),
			zap.Int("max_queue_size", m.maxSize),
		)
	})
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case req := <-m.queue:
			m.process(id, req)
		}
	}
}

func (m *Manager) process(id int, req *Request) {
	// 等待期間呼叫端已放棄
	if err := req.Context.Err(); err != nil {
		req.Result <- Result{Error: err}
		return
	}

	resp, err := req.Job(req.Context)
	atomic.AddInt64(&m.processed, 1)
	req.Result <- Result{Response: resp, Error: err}

	common.LogDebug("Queue job finished",
		zap.Int("worker", id),
		zap.Bool("success", err == nil),
	)
}

// Enqueue 將請求加入隊列，隊列已滿時立即回傳 ErrQueueFull
func (m *Manager) Enqueue(ctx context.Context, job Job) (<-chan Result, error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	queueReq := &Request{
		Context: ctx,
		Job:     job,
		Result:  make(chan Result, 1),
	}

	select {
	case m.queue <- queueReq:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return queueReq.Result, nil
	default:
		common.LogWarn("Queue is full", zap.Int("max_queue_size", m.maxSize))
		return nil, common.ErrQueueFull
	}
}

// Submit 加入隊列並等待結果或 ctx 結束
func (m *Manager) Submit(ctx context.Context, job Job) (*provider.Response, error) {
	resultCh, err := m.Enqueue(ctx, job)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		return res.Response, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 停止 worker 並等待執行中的工作結束
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		common.LogInfo("Queue manager closed",
			zap.Int64("processed", atomic.LoadInt64(&m.processed)),
		)
	})
}
