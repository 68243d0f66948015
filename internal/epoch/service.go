package epoch

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
	"OpenAttest-Chain/pkg/logger"
)

// Service 是见证注册表：维护只增的纪元历史并向验证器提供只读视图。
// 写入由单一管理入口串行化，读取无需加锁。
type Service struct {
	store Store
	now   func() time.Time
	audit *slog.Logger
}

// NewService 构造见证注册表。
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, audit: logger.Audit()}
}

// AddEpoch 校验并追加一个新纪元，返回新纪元编号。
// 纪元编号单调递增，前一纪元在同一次追加中被封口。
func (s *Service) AddEpoch(ctx context.Context, witnesses []claim.Witness, requiredSignatures int) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, xerrors.New(xerrors.CodeInitializationFailure, "纪元存储未初始化")
	}
	if len(witnesses) == 0 {
		return 0, xerrors.Wrap(claim.CodeInvalidConfiguration, nil, "见证列表不能为空")
	}
	if requiredSignatures <= 0 || requiredSignatures > len(witnesses) {
		return 0, xerrors.Wrap(claim.CodeInvalidConfiguration, nil, "所需签名数必须介于 1 与见证总数之间")
	}
	seen := make(map[string]struct{}, len(witnesses))
	for _, witness := range witnesses {
		key := witness.Address.Hex()
		if _, dup := seen[key]; dup {
			return 0, xerrors.Wrap(claim.CodeInvalidConfiguration, nil, "见证地址重复: "+key)
		}
		seen[key] = struct{}{}
	}

	nextID := uint64(1)
	latest, err := s.store.Latest(ctx)
	switch {
	case err == nil:
		nextID = latest.ID + 1
	case stdErrors.Is(err, ErrNoCurrentEpoch):
	default:
		return 0, err
	}

	now := s.now().Unix()
	epoch := &Epoch{
		ID:                 nextID,
		Witnesses:          append([]claim.Witness(nil), witnesses...),
		RequiredSignatures: requiredSignatures,
		ValidFrom:          now,
		CreatedAt:          now,
	}
	if err := s.store.Append(ctx, epoch); err != nil {
		return 0, err
	}

	s.audit.Info("纪元已创建",
		slog.Uint64("epoch", epoch.ID),
		slog.Int("witnesses", len(epoch.Witnesses)),
		slog.Int("required_signatures", epoch.RequiredSignatures),
	)
	return epoch.ID, nil
}

// Epoch 实现 claim.EpochSource，向验证器提供纪元只读快照。
func (s *Service) Epoch(ctx context.Context, id uint64) (*claim.EpochView, error) {
	epoch, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &claim.EpochView{
		ID:                 epoch.ID,
		Witnesses:          epoch.Witnesses,
		RequiredSignatures: epoch.RequiredSignatures,
		ValidFrom:          epoch.ValidFrom,
		ValidUntil:         epoch.ValidUntil,
	}, nil
}

// Current 返回当前纪元。
func (s *Service) Current(ctx context.Context) (*Epoch, error) {
	return s.store.Latest(ctx)
}

// Get 按编号返回纪元。
func (s *Service) Get(ctx context.Context, id uint64) (*Epoch, error) {
	return s.store.Get(ctx, id)
}

// List 按编号升序返回全部纪元历史。
func (s *Service) List(ctx context.Context) ([]*Epoch, error) {
	return s.store.List(ctx)
}

// Bootstrap 在存储为空时用定义文件中的见证集合创建首个纪元。
func (s *Service) Bootstrap(ctx context.Context, defs Definitions) error {
	if len(defs.Witnesses) == 0 {
		return nil
	}
	if _, err := s.store.Latest(ctx); err == nil {
		return nil
	} else if !stdErrors.Is(err, ErrNoCurrentEpoch) {
		return err
	}
	witnesses, required, err := defs.Materialize()
	if err != nil {
		return err
	}
	if _, err := s.AddEpoch(ctx, witnesses, required); err != nil {
		return err
	}
	return nil
}

var _ claim.EpochSource = (*Service)(nil)
