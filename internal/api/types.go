package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

// InfoPayload 是声明来源信息的线上表示。
type InfoPayload struct {
	Provider   string `json:"provider"`
	Parameters string `json:"parameters"`
	Context    string `json:"context"`
}

// ClaimPayload 是声明主体的线上表示，标识与地址均为 0x 前缀十六进制。
type ClaimPayload struct {
	Identifier string `json:"identifier"`
	Owner      string `json:"owner"`
	TimestampS uint64 `json:"timestamp_s"`
	Epoch      uint64 `json:"epoch"`
}

// ProofPayload 是一次证明提交的线上表示。
type ProofPayload struct {
	Info       InfoPayload  `json:"info"`
	Claim      ClaimPayload `json:"claim"`
	Signatures []string     `json:"signatures"`
}

// SubmitPayload 包装异步提交请求，ID 可选，用于幂等重试。
type SubmitPayload struct {
	ID    string       `json:"id,omitempty"`
	Proof ProofPayload `json:"proof"`
}

// EpochPayload 是创建纪元请求的线上表示。
type EpochPayload struct {
	Witnesses          []WitnessPayload `json:"witnesses"`
	RequiredSignatures int              `json:"required_signatures"`
}

// WitnessPayload 描述单个见证节点。
type WitnessPayload struct {
	Address string `json:"address"`
	Host    string `json:"host"`
}

// ToProof 将线上表示转换为内部证明结构，所有十六进制字段严格校验。
func (p ProofPayload) ToProof() (claim.Proof, error) {
	var proof claim.Proof

	identifier, err := hexutil.Decode(p.Claim.Identifier)
	if err != nil || len(identifier) != common.HashLength {
		return proof, xerrors.New(xerrors.CodeInvalidArgument, "identifier 必须是 32 字节的 0x 十六进制串")
	}
	if !common.IsHexAddress(p.Claim.Owner) {
		return proof, xerrors.New(xerrors.CodeInvalidArgument, "owner 不是合法的地址")
	}

	signatures := make([][]byte, len(p.Signatures))
	for i, raw := range p.Signatures {
		signature, err := hexutil.Decode(raw)
		if err != nil {
			return proof, xerrors.New(xerrors.CodeInvalidArgument, "signature 必须是 0x 十六进制串")
		}
		signatures[i] = signature
	}

	proof = claim.Proof{
		Info: claim.Info{
			Provider:   p.Info.Provider,
			Parameters: p.Info.Parameters,
			Context:    p.Info.Context,
		},
		SignedClaim: claim.SignedClaim{
			Data: claim.CompleteClaimData{
				Identifier: common.BytesToHash(identifier),
				Owner:      common.HexToAddress(p.Claim.Owner),
				TimestampS: p.Claim.TimestampS,
				Epoch:      p.Claim.Epoch,
			},
			Signatures: signatures,
		},
	}
	return proof, nil
}

// ToWitnesses 将线上表示转换为见证列表。
func (p EpochPayload) ToWitnesses() ([]claim.Witness, error) {
	if len(p.Witnesses) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "见证列表不能为空")
	}
	witnesses := make([]claim.Witness, len(p.Witnesses))
	for i, witness := range p.Witnesses {
		if !common.IsHexAddress(witness.Address) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "见证地址不合法: "+witness.Address)
		}
		witnesses[i] = claim.Witness{
			Address: common.HexToAddress(witness.Address),
			Host:    witness.Host,
		}
	}
	return witnesses, nil
}
