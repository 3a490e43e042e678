package recommend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"meal-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// State 推薦工作階段狀態
type State string

const (
	StateUninitialized   State = "UNINITIALIZED"
	StateLoadingPool     State = "LOADING_POOL"
	StateReady           State = "READY"
	StateResolvingDetail State = "RESOLVING_DETAIL"
)

// View 使用者看到的畫面狀態
type View string

const (
	ViewLoading View = "loading"
	ViewResults View = "results"
	ViewEmpty   View = "empty"
)

// Snapshot 工作階段對外快照
type Snapshot struct {
	SessionID         string                   `json:"session_id"`
	Generation        uint64                   `json:"generation"`
	State             State                    `json:"state"`
	View              View                     `json:"view"`
	Code              string                   `json:"code,omitempty"`
	HealthPreference  common.HealthPreference  `json:"health_preference"`
	SliderLabel       string                   `json:"slider_label"`
	Ceiling           int                      `json:"ceiling"`
	Relaxed           bool                     `json:"relaxed"`
	TargetedExclusive bool                     `json:"targeted_exclusive"`
	Candidates        []common.ScoredCandidate `json:"candidates"`
}

// Session 單一使用者的推薦工作階段
// 每次 Recommend 取得遞增的 generation，只有最新發出的請求能寫入結果
type Session struct {
	ID string

	orch   *Orchestrator
	issued uint64

	mu        sync.RWMutex
	state     State
	applied   uint64
	finished  uint64 // 已結束（成功、失敗或過期）的最大 generation
	hp        common.HealthPreference
	result    *Recommendation
	images    map[uint64]map[string]string
	createdAt time.Time
	touchedAt time.Time
}

func newSession(id string, orch *Orchestrator) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		orch:      orch,
		state:     StateUninitialized,
		images:    make(map[uint64]map[string]string),
		createdAt: now,
		touchedAt: now,
	}
}

// State 目前狀態
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Generation 最後套用的 generation
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

// Recommend 重新計算推薦；若期間已有更新的請求，結果丟棄並回傳 ErrStaleRequest
func (s *Session) Recommend(ctx context.Context, profile common.PreferenceProfile, hp common.HealthPreference) (*Snapshot, error) {
	gen := atomic.AddUint64(&s.issued, 1)

	s.mu.Lock()
	prev := s.state
	s.state = StateLoadingPool
	s.touchedAt = time.Now()
	s.mu.Unlock()

	rec, err := s.orch.recommend(ctx, profile, hp, func(images map[string]string) {
		s.mergeImages(gen, images)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen > s.finished {
		s.finished = gen
	}
	if gen != atomic.LoadUint64(&s.issued) {
		common.LogDebug("Discarding stale recommendation",
			zap.String("session", s.ID),
			zap.Uint64("generation", gen),
		)
		return nil, common.ErrStaleRequest
	}
	if err != nil {
		s.state = prev
		if s.state == StateLoadingPool {
			s.state = s.settledState()
		}
		return nil, err
	}

	s.applied = gen
	s.hp = hp
	s.result = rec
	s.state = StateReady
	for g := range s.images {
		if g < gen {
			delete(s.images, g)
		}
	}
	return s.snapshotLocked(), nil
}

// settledState 呼叫端需持有鎖；最新的 Recommend 尚未結束時仍為 LOADING_POOL
func (s *Session) settledState() State {
	if atomic.LoadUint64(&s.issued) > s.finished {
		return StateLoadingPool
	}
	if s.result == nil {
		return StateUninitialized
	}
	return StateReady
}

// mergeImages 只接受仍為最新 generation 的圖片結果
func (s *Session) mergeImages(gen uint64, images map[string]string) {
	if gen != atomic.LoadUint64(&s.issued) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst, ok := s.images[gen]
	if !ok {
		dst = make(map[string]string, len(images))
		s.images[gen] = dst
	}
	for id, url := range images {
		dst[id] = url
	}
}

// Images 目前結果的縮圖，尚未解析的候選給佔位圖
func (s *Session) Images() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	if s.result == nil {
		return out
	}
	resolved := s.images[s.applied]
	for _, c := range s.result.Candidates {
		if url, ok := resolved[c.ID]; ok {
			out[c.ID] = url
			continue
		}
		out[c.ID] = s.orch.Image(c.ID)
	}
	return out
}

// Select 使用者選取候選後解析完整食譜
func (s *Session) Select(ctx context.Context, id string) (*common.RecipeDetail, error) {
	s.mu.Lock()
	if s.state != StateLoadingPool {
		s.state = StateResolvingDetail
	}
	s.touchedAt = time.Now()
	s.mu.Unlock()

	detail, err := s.orch.ResolveDetail(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateResolvingDetail {
		s.state = s.settledState()
	}
	if err != nil {
		return nil, err
	}
	if url, ok := s.images[s.applied][id]; ok {
		detail.Image = url
	}
	return detail, nil
}

// Snapshot 目前快照
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID:        s.ID,
		Generation:       s.applied,
		State:            s.state,
		View:             s.viewLocked(),
		HealthPreference: s.hp,
		SliderLabel:      SliderLabel(s.hp),
		Candidates:       []common.ScoredCandidate{},
	}
	if s.result != nil {
		snap.Ceiling = s.result.Ceiling
		snap.Relaxed = s.result.Relaxed
		snap.TargetedExclusive = s.result.TargetedExclusive
		snap.Candidates = s.result.Candidates
	}
	if snap.View == ViewEmpty {
		snap.Code = common.ErrCodeEmptyPoolAfterRelax
	}
	return snap
}

func (s *Session) viewLocked() View {
	if s.state == StateLoadingPool || s.result == nil {
		return ViewLoading
	}
	if s.result.Empty() {
		return ViewEmpty
	}
	return ViewResults
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touchedAt
}

// Registry 工作階段登記表
type Registry struct {
	orch     *Orchestrator
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*Session
	done     chan struct{}
	once     sync.Once
}

// NewRegistry 創建登記表；ttl > 0 時定期清除閒置工作階段
func NewRegistry(orch *Orchestrator, ttl time.Duration) *Registry {
	r := &Registry{
		orch:     orch,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go r.startCleanup(ttl / 2)
	}
	return r
}

// Create 建立新的工作階段
func (r *Registry) Create() *Session {
	s := newSession(common.GenerateUUID(), r.orch)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	common.LogDebug("Session created", zap.String("session", s.ID))
	return s
}

// Get 查詢工作階段
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	return s, nil
}

// Len 工作階段數量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.done:
			return
		}
	}
}

// cleanup 清除閒置超過 ttl 的工作階段
func (r *Registry) cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.ttl {
			delete(r.sessions, id)
			count++
		}
	}
	if count > 0 {
		common.LogInfo("Cleaned up idle sessions",
			zap.Int("count", count),
			zap.Int("remaining", len(r.sessions)),
		)
	}
	return count
}

// Close 停止清理協程
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })
}
