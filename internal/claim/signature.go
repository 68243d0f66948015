package claim

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "OpenAttest-Chain/internal/errors"
)

// 以太坊个人消息签名为 65 字节的 r || s || v。
const signatureLength = 65

// RecoverSigner 从个人消息签名中恢复签名者地址。
// 消息按 "\x19Ethereum Signed Message:\n<十进制长度>" 约定加前缀后哈希。
// v 接受 0/1 与 27/28 两种写法。任何格式问题都返回 ErrInvalidSignature，
// 调用方应将其视作"该见证未签名"，而不是整个证明的致命错误。
func RecoverSigner(message, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, xerrors.Wrap(CodeInvalidSignature, nil, "签名长度必须为 65 字节")
	}

	normalized := make([]byte, signatureLength)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, xerrors.Wrap(CodeInvalidSignature, nil, "恢复参数 v 越界")
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, xerrors.Wrap(CodeInvalidSignature, err, "恢复签名者失败")
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignClaimData 用见证私钥对声明主体签名，是 RecoverSigner 的签名侧。
// 链下征集工具与测试用它生成与验证端完全兼容的签名。
func SignClaimData(data CompleteClaimData, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "签名私钥不能为空")
	}
	signature, err := crypto.Sign(accounts.TextHash(SerializeClaimData(data)), key)
	if err != nil {
		return nil, xerrors.Wrap(CodeInvalidSignature, err, "签名声明失败")
	}
	return signature, nil
}
