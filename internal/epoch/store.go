package epoch

import "context"

// Store 抽象纪元历史的持久化。实现必须保证 Append 是原子追加：
// 读取方要么看到完整的新纪元，要么完全看不到。
type Store interface {
	// Append 持久化一个新纪元，编号冲突时返回 CONFLICT。
	// 若此前的最新纪元尚未封口（ValidUntil == 0），实现必须在同一次
	// 原子操作中将其 ValidUntil 置为新纪元的 ValidFrom。
	Append(ctx context.Context, epoch *Epoch) error
	// Get 按编号查询纪元，不存在时返回 ErrEpochNotFound。
	Get(ctx context.Context, id uint64) (*Epoch, error)
	// Latest 返回编号最大的纪元，注册表为空时返回 ErrNoCurrentEpoch。
	Latest(ctx context.Context) (*Epoch, error)
	// List 按编号升序返回全部纪元。
	List(ctx context.Context) ([]*Epoch, error)
	Close() error
}
