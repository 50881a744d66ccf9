package api

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// artifact 一次运行的导出结果，凭令牌下载一次
type artifact struct {
	runID     string
	paths     []string
	expiresAt time.Time
}

// artifactTokens 下载令牌表。令牌过期或被使用后，对应的导出文件一并删除。
type artifactTokens struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]artifact
}

func newArtifactTokens(ttl time.Duration) *artifactTokens {
	return &artifactTokens{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]artifact),
	}
}

// issue 登记导出文件并返回下载令牌
func (s *artifactTokens) issue(runID string, paths ...string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	s.items[token] = artifact{runID: runID, paths: paths, expiresAt: s.now().Add(s.ttl)}
	return token
}

// lookup 查询未过期的令牌
func (s *artifactTokens) lookup(token string) (artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	a, ok := s.items[token]
	return a, ok
}

// consume 作废令牌并删除导出文件
func (s *artifactTokens) consume(token string) {
	s.mu.Lock()
	a, ok := s.items[token]
	delete(s.items, token)
	s.mu.Unlock()
	if ok {
		removeArtifact(a)
	}
}

func (s *artifactTokens) expireLocked() {
	now := s.now()
	for token, a := range s.items {
		if now.After(a.expiresAt) {
			delete(s.items, token)
			removeArtifact(a)
		}
	}
}

func removeArtifact(a artifact) {
	for _, p := range a.paths {
		_ = os.Remove(p)
	}
}
