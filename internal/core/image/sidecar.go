package image

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"meal-recommender/internal/infrastructure/config"
	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull 佇列已滿，本批圖片放棄
	ErrQueueFull = errors.New("image queue is full")
	// ErrClosed 側車已關閉
	ErrClosed = errors.New("image sidecar is closed")
)

// batchParallelism 單批同時查詢的上限
const batchParallelism = 8

// Candidate 需要縮圖的候選
type Candidate struct {
	ID    string
	Title string
}

// Callback 批次完成後回呼，結果以候選 ID 為鍵
type Callback func(images map[string]string)

type job struct {
	candidates []Candidate
	callback   Callback
}

// Status 佇列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	DroppedCount   int64 `json:"dropped_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Sidecar 圖片解析側車：盡力而為，絕不阻塞排序結果
type Sidecar struct {
	resolver    Resolver
	placeholder string
	timeout     time.Duration
	workers     int
	queueSize   int

	queue     chan *job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	processed int64
	dropped   int64
}

// NewSidecar 創建側車並啟動 worker；resolver 為 nil 時一律回傳佔位圖
func NewSidecar(resolver Resolver, cfg *config.ImageConfig) *Sidecar {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Sidecar{
		resolver:    resolver,
		placeholder: cfg.Placeholder,
		timeout:     timeout,
		workers:     workers,
		queueSize:   queueSize,
		queue:       make(chan *job, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	common.LogInfo("圖片側車已啟動",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize),
	)
	return s
}

// Placeholder 佔位圖網址
func (s *Sidecar) Placeholder() string {
	return s.placeholder
}

// ResolveAll 並行查詢整批，個別失敗以佔位圖取代，等待全部完成
func (s *Sidecar) ResolveAll(ctx context.Context, candidates []Candidate) map[string]string {
	images := make(map[string]string, len(candidates))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(batchParallelism)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			url := s.placeholder
			if s.resolver != nil {
				resolved, err := s.resolver.ResolveImage(ctx, c.Title)
				if err == nil {
					url = resolved
				} else if !errors.Is(err, ErrNoImage) {
					common.LogDebug("Image lookup failed",
						zap.String("id", c.ID),
						zap.Error(err),
					)
				}
			}
			mu.Lock()
			images[c.ID] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return images
}

// Dispatch 非阻塞地將整批加入佇列，佇列已滿時直接放棄
func (s *Sidecar) Dispatch(candidates []Candidate, callback Callback) error {
	if len(candidates) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.queue <- &job{candidates: candidates, callback: callback}:
		return nil
	default:
		atomic.AddInt64(&s.dropped, 1)
		common.LogWarn("Image queue full, batch dropped",
			zap.Int("batch", len(candidates)),
			zap.Int("max_queue_size", s.queueSize),
		)
		return ErrQueueFull
	}
}

func (s *Sidecar) worker(id int) {
	defer s.wg.Done()

	for j := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		images := s.ResolveAll(ctx, j.candidates)
		cancel()

		atomic.AddInt64(&s.processed, 1)
		if j.callback != nil {
			j.callback(images)
		}
		common.LogDebug("圖片批次完成",
			zap.Int("worker", id),
			zap.Int("batch", len(j.candidates)),
		)
	}
}

// GetStatus 獲取佇列狀態
func (s *Sidecar) GetStatus() *Status {
	return &Status{
		QueueLength:    len(s.queue),
		ProcessedCount: atomic.LoadInt64(&s.processed),
		DroppedCount:   atomic.LoadInt64(&s.dropped),
		MaxQueueSize:   s.queueSize,
		Workers:        s.workers,
	}
}

// Close 停止接收新批次並等待 worker 結束
func (s *Sidecar) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	common.LogInfo("圖片側車已關閉", zap.Int64("processed", atomic.LoadInt64(&s.processed)))
}
