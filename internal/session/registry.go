package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Journal 会话重建所需的只读日志接口
// Journal is the read side of the turn journal used to rebuild sessions
type Journal interface {
	LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}

// RegistryOptions Registry 配置
// RegistryOptions configures a Registry
type RegistryOptions struct {
	// TTL 不活跃多久后淘汰；<=0 表示永不淘汰
	// TTL is the inactivity window before eviction; <=0 never evicts
	TTL        time.Duration
	MaxHistory int
	Journal    Journal
	Logger     zerolog.Logger
	// OnEvict 在会话被淘汰后调用
	// OnEvict runs after a session is evicted
	OnEvict func(id string)
}

// Registry 按会话 ID 保存会话，带不活跃过期
// Registry keys sessions by id and expires inactive ones
type Registry struct {
	mu     sync.Mutex
	loads  singleflight.Group
	cache  *cache.Cache
	opts   RegistryOptions
	logger zerolog.Logger
}

// NewRegistry 创建会话表
// NewRegistry creates a session registry
func NewRegistry(opts RegistryOptions) *Registry {
	ttl := opts.TTL
	cleanup := ttl / 2
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	} else if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &Registry{
		cache:  cache.New(ttl, cleanup),
		opts:   opts,
		logger: opts.Logger.With().Str("component", "session").Logger(),
	}
	r.cache.OnEvicted(func(key string, _ interface{}) {
		r.logger.Debug().Str("session", key).Msg("session evicted")
		if r.opts.OnEvict != nil {
			r.opts.OnEvict(key)
		}
	})
	return r
}

// GetOrCreate 返回已有会话，不存在时创建并从日志重建历史。
// 读日志不持有 r.mu；同一 ID 的并发调用共用一次加载
// GetOrCreate returns the live session for id, creating it and replaying the journal when absent.
// The journal is read without holding r.mu and concurrent calls for one id share a single load.
func (r *Registry) GetOrCreate(ctx context.Context, id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	v, _, _ := r.loads.Do(id, func() (any, error) {
		if s, ok := r.Get(id); ok {
			return s, nil
		}
		s := r.restore(ctx, id)

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.Get(id); ok {
			return existing, nil
		}
		r.cache.Set(id, s, cache.DefaultExpiration)
		return s, nil
	})
	return v.(*Session)
}

func (r *Registry) restore(ctx context.Context, id string) *Session {
	s := newSession(id, r.opts.MaxHistory)
	if r.opts.Journal == nil {
		return s
	}
	turns, err := r.opts.Journal.LoadTurns(ctx, id, r.opts.MaxHistory)
	if err != nil {
		r.logger.Warn().Str("session", id).Err(err).Msg("replay journal failed")
	}
	for _, t := range turns {
		s.Append(t)
	}
	if len(turns) > 0 {
		r.logger.Debug().Str("session", id).Int("turns", len(turns)).Msg("session restored")
	}
	return s
}

// Get 返回存活的会话
// Get returns a live session without creating one
func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// Touch 刷新会话的过期时间
// Touch restarts the inactivity window for s
func (r *Registry) Touch(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(s.ID(), s, cache.DefaultExpiration)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return r.cache.ItemCount() }

// IDs 按字典序返回存活会话 ID
// IDs returns the live session ids in lexical order
func (r *Registry) IDs() []string {
	items := r.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evict 立即移除会话
// Evict removes a session immediately
func (r *Registry) Evict(id string) {
	r.cache.Delete(id)
}
