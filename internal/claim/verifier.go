package claim

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenAttest-Chain/internal/errors"
	"OpenAttest-Chain/pkg/logger"
)

// Outcome 表示一次验证的终态。
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeRejected Outcome = "rejected"
)

// EpochView 是验证器所需的纪元只读快照。
type EpochView struct {
	ID                 uint64
	Witnesses          []Witness
	RequiredSignatures int
	ValidFrom          int64
	ValidUntil         int64
}

// EpochSource 提供按编号查询纪元的能力，通常由见证注册表实现。
// 纪元不存在时应返回 NOT_FOUND 错误码。
type EpochSource interface {
	Epoch(ctx context.Context, id uint64) (*EpochView, error)
}

// Result 记录一次验证的结论。Rejected 时 Reason 携带拒绝原因码。
type Result struct {
	Outcome    Outcome          `json:"outcome"`
	Reason     xerrors.Code     `json:"reason,omitempty"`
	Identifier common.Hash      `json:"identifier"`
	Epoch      uint64           `json:"epoch"`
	Expected   []common.Address `json:"expected,omitempty"`
	Signers    []common.Address `json:"signers,omitempty"`
}

// Valid 报告验证是否通过。
func (r *Result) Valid() bool {
	return r != nil && r.Outcome == OutcomeValid
}

// Verifier 按固定顺序执行验证门禁，任一门禁失败立即终止。
type Verifier struct {
	epochs EpochSource
	log    *slog.Logger
}

// NewVerifier 构造证明验证器。
func NewVerifier(epochs EpochSource) *Verifier {
	return &Verifier{epochs: epochs, log: logger.Named("verifier")}
}

// Verify 对提交的证明执行完整验证。
// 返回的 error 仅代表基础设施故障（如纪元存储不可用）；
// 证明本身不合法时 error 为 nil，结论在 Result.Reason 中。
//
// 门禁顺序：标识一致性、纪元解析、纪元配置、签名数量、
// 签名者恢复与去重、期望见证覆盖。不存在部分通过。
func (v *Verifier) Verify(ctx context.Context, proof Proof) (*Result, error) {
	if v == nil || v.epochs == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "验证器未配置纪元来源")
	}

	data := proof.SignedClaim.Data
	result := &Result{Identifier: data.Identifier, Epoch: data.Epoch}

	// 门禁 1：重新计算标识并与声明中的标识比对。
	computed := InfoHash(proof.Info)
	if computed != data.Identifier {
		return v.reject(result, CodeIdentifierMismatch), nil
	}

	// 门禁 2：解析纪元并检查时间戳落在有效窗口内。
	epoch, err := v.epochs.Epoch(ctx, data.Epoch)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			return v.reject(result, CodeUnknownEpoch), nil
		}
		return nil, err
	}
	if !epochCovers(epoch, data.TimestampS) {
		return v.reject(result, CodeUnknownEpoch), nil
	}

	// 门禁 3：纪元配置必须合法。
	if epoch.RequiredSignatures <= 0 || epoch.RequiredSignatures > len(epoch.Witnesses) {
		return v.reject(result, CodeInvalidConfiguration), nil
	}

	// 门禁 4：签名数量先于昂贵的恢复运算检查。
	signatures := proof.SignedClaim.Signatures
	if len(signatures) < epoch.RequiredSignatures {
		return v.reject(result, CodeInsufficientSignatures), nil
	}

	expected, err := ExpectedWitnesses(epoch.Witnesses, epoch.RequiredSignatures, data.Identifier, data.TimestampS)
	if err != nil {
		if xerrors.CodeOf(err) == CodeInvalidConfiguration {
			return v.reject(result, CodeInvalidConfiguration), nil
		}
		return nil, err
	}
	result.Expected = witnessAddresses(expected)

	// 门禁 5：逐个恢复签名者。格式非法的签名不计入，也不中断验证；
	// 两个签名恢复到同一地址则直接拒绝。
	message := SerializeClaimData(data)
	recovered := make(map[common.Address]struct{}, len(signatures))
	signers := make([]common.Address, 0, len(signatures))
	for _, signature := range signatures {
		signer, recErr := RecoverSigner(message, signature)
		if recErr != nil {
			v.log.Debug("忽略无法恢复的签名",
				slog.String("identifier", data.Identifier.Hex()),
				slog.String("error", recErr.Error()),
			)
			continue
		}
		if _, dup := recovered[signer]; dup {
			return v.reject(result, CodeDuplicateSigner), nil
		}
		recovered[signer] = struct{}{}
		signers = append(signers, signer)
	}
	result.Signers = signers

	// 门禁 6：每个期望见证都必须出现在恢复集合中。
	// 额外的有效签名不导致拒绝（超集语义）。
	for _, witness := range expected {
		if _, ok := recovered[witness.Address]; !ok {
			return v.reject(result, CodeInsufficientSignatures), nil
		}
	}

	result.Outcome = OutcomeValid
	return result, nil
}

func (v *Verifier) reject(result *Result, reason xerrors.Code) *Result {
	result.Outcome = OutcomeRejected
	result.Reason = reason
	v.log.Debug("证明被拒绝",
		slog.String("identifier", result.Identifier.Hex()),
		slog.Uint64("epoch", result.Epoch),
		slog.String("reason", string(reason)),
	)
	return result
}

func epochCovers(epoch *EpochView, timestampS uint64) bool {
	ts := int64(timestampS)
	if epoch.ValidFrom > 0 && ts < epoch.ValidFrom {
		return false
	}
	if epoch.ValidUntil > 0 && ts > epoch.ValidUntil {
		return false
	}
	return true
}

func witnessAddresses(witnesses []Witness) []common.Address {
	addresses := make([]common.Address, len(witnesses))
	for i, w := range witnesses {
		addresses[i] = w.Address
	}
	return addresses
}
