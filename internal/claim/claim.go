package claim

import (
	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenAttest-Chain/internal/errors"
)

// Witness 描述一个被授权为声明签名的见证节点。
type Witness struct {
	Address common.Address `json:"address"`
	Host    string         `json:"host"`
}

// Info 描述声明的来源：由哪个 provider、用什么参数产出，以及携带的上下文。
// Context 是半结构化字符串，按字节扫描提取字段，不做 JSON 解析。
type Info struct {
	Provider   string `json:"provider"`
	Parameters string `json:"parameters"`
	Context    string `json:"context"`
}

// CompleteClaimData 是见证节点实际签名的声明主体。
// Identifier 必须等于 InfoHash(Info)，该不变量在验证时检查而非构造时。
type CompleteClaimData struct {
	Identifier common.Hash    `json:"identifier"`
	Owner      common.Address `json:"owner"`
	TimestampS uint64         `json:"timestamp_s"`
	Epoch      uint64         `json:"epoch"`
}

// SignedClaim 将声明主体与见证签名打包在一起。
// 签名顺序与期望见证顺序无关，匹配阶段按恢复出的地址对齐。
type SignedClaim struct {
	Data       CompleteClaimData `json:"claim"`
	Signatures [][]byte          `json:"signatures"`
}

// Proof 是提交验证的完整单元，由声明持有者在链下组装。
type Proof struct {
	Info        Info        `json:"claim_info"`
	SignedClaim SignedClaim `json:"signed_claim"`
}

// 验证拒绝原因对应的统一错误码。
const (
	CodeIdentifierMismatch     xerrors.Code = "IDENTIFIER_MISMATCH"
	CodeUnknownEpoch           xerrors.Code = "UNKNOWN_EPOCH"
	CodeInvalidConfiguration   xerrors.Code = "INVALID_CONFIGURATION"
	CodeInsufficientSignatures xerrors.Code = "INSUFFICIENT_SIGNATURES"
	CodeDuplicateSigner        xerrors.Code = "DUPLICATE_SIGNER"
	CodeInvalidSignature       xerrors.Code = "INVALID_SIGNATURE"
)

var (
	// ErrIdentifierMismatch 表示重新计算的标识与声明中的标识不一致。
	ErrIdentifierMismatch = xerrors.New(CodeIdentifierMismatch, "claim identifier mismatch")
	// ErrUnknownEpoch 表示声明引用的纪元不存在或对其时间戳无效。
	ErrUnknownEpoch = xerrors.New(CodeUnknownEpoch, "unknown or expired epoch")
	// ErrInvalidConfiguration 表示纪元或选择参数非法。
	ErrInvalidConfiguration = xerrors.New(CodeInvalidConfiguration, "invalid witness configuration")
	// ErrInsufficientSignatures 表示有效且匹配的签名数量不足。
	ErrInsufficientSignatures = xerrors.New(CodeInsufficientSignatures, "insufficient witness signatures")
	// ErrDuplicateSigner 表示两个签名恢复到同一个地址。
	ErrDuplicateSigner = xerrors.New(CodeDuplicateSigner, "duplicate witness signature")
	// ErrInvalidSignature 表示单个签名格式非法，无法恢复签名者。
	ErrInvalidSignature = xerrors.New(CodeInvalidSignature, "invalid signature")
)

func init() {
	xerrors.Register(CodeIdentifierMismatch, xerrors.Attributes{
		Message:   "claim identifier mismatch",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeUnknownEpoch, xerrors.Attributes{
		Message:   "unknown or expired epoch",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidConfiguration, xerrors.Attributes{
		Message:   "invalid witness configuration",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeInsufficientSignatures, xerrors.Attributes{
		Message:   "insufficient witness signatures",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeDuplicateSigner, xerrors.Attributes{
		Message:   "duplicate witness signature",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidSignature, xerrors.Attributes{
		Message:   "invalid signature",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}
