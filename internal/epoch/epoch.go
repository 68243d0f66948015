package epoch

import (
	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

// Epoch 是某一版本的授权见证集合快照。
// 创建之后不可变：新纪元接替旧纪元，但历史纪元永远可查，
// 否则落在旧纪元有效窗口内的声明将无法验证。
type Epoch struct {
	ID                 uint64          `json:"id"`
	Witnesses          []claim.Witness `json:"witnesses"`
	RequiredSignatures int             `json:"required_signatures"`
	ValidFrom          int64           `json:"valid_from"`
	ValidUntil         int64           `json:"valid_until,omitempty"`
	CreatedAt          int64           `json:"created_at"`
}

var (
	// ErrEpochNotFound 表示指定编号的纪元不存在。
	ErrEpochNotFound = xerrors.New(xerrors.CodeNotFound, "epoch not found")
	// ErrNoCurrentEpoch 表示注册表尚未创建任何纪元。
	ErrNoCurrentEpoch = xerrors.New(xerrors.CodeNotFound, "no current epoch")
)

// clone 返回纪元的深拷贝，避免调用方改写注册表内部状态。
func (e *Epoch) clone() *Epoch {
	if e == nil {
		return nil
	}
	copied := *e
	copied.Witnesses = make([]claim.Witness, len(e.Witnesses))
	copy(copied.Witnesses, e.Witnesses)
	return &copied
}
