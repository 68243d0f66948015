package epoch

import (
	"context"
	"sync"

	xerrors "OpenAttest-Chain/internal/errors"
)

// MemoryStore 把纪元历史保存在内存里，按追加顺序排列。
// 适用于测试与单机部署。
type MemoryStore struct {
	mu     sync.RWMutex
	epochs []*Epoch
	byID   map[uint64]*Epoch
}

// NewMemoryStore 创建内存纪元存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uint64]*Epoch)}
}

// Append 原子地追加一个新纪元。
func (s *MemoryStore) Append(_ context.Context, epoch *Epoch) error {
	if epoch == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "epoch 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[epoch.ID]; exists {
		return xerrors.New(xerrors.CodeConflict, "纪元编号已存在")
	}
	stored := epoch.clone()
	if len(s.epochs) > 0 {
		if prev := s.epochs[len(s.epochs)-1]; prev.ValidUntil == 0 {
			prev.ValidUntil = stored.ValidFrom
		}
	}
	s.epochs = append(s.epochs, stored)
	s.byID[stored.ID] = stored
	return nil
}

// Get 按编号查询纪元。
func (s *MemoryStore) Get(_ context.Context, id uint64) (*Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	epoch, ok := s.byID[id]
	if !ok {
		return nil, ErrEpochNotFound
	}
	return epoch.clone(), nil
}

// Latest 返回最近追加的纪元。
func (s *MemoryStore) Latest(_ context.Context) (*Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.epochs) == 0 {
		return nil, ErrNoCurrentEpoch
	}
	return s.epochs[len(s.epochs)-1].clone(), nil
}

// List 按追加顺序返回全部纪元。
func (s *MemoryStore) List(_ context.Context) ([]*Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	epochs := make([]*Epoch, len(s.epochs))
	for i, epoch := range s.epochs {
		epochs[i] = epoch.clone()
	}
	return epochs, nil
}

// Close 实现 Store 接口，内存实现无需释放资源。
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
