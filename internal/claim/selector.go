package claim

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "OpenAttest-Chain/internal/errors"
)

// SelectWitnesses 从纪元见证列表中确定性地抽取 required 个见证。
// 算法为部分 Fisher-Yates：第 i 步用 keccak256(seed || be32(i)) 对剩余
// 数量取模得到偏移，把命中的元素换到位置 i。熵只来自哈希流，不依赖
// 任何平台随机源，链下工具按同样步骤能得到逐位一致的结果。
// 选择机制已冻结，修改哈希、种子构造或取模方式都会破坏已签发的证明。
func SelectWitnesses(witnesses []Witness, required int, seed common.Hash) ([]Witness, error) {
	n := len(witnesses)
	if n == 0 {
		return nil, xerrors.Wrap(CodeInvalidConfiguration, nil, "纪元见证列表为空")
	}
	if required <= 0 {
		return nil, xerrors.Wrap(CodeInvalidConfiguration, nil, "所需签名数必须大于 0")
	}
	if required > n {
		return nil, xerrors.Wrap(CodeInvalidConfiguration, nil, "所需签名数超过见证总数")
	}

	pool := make([]Witness, n)
	copy(pool, witnesses)

	var counter [4]byte
	remaining := new(big.Int)
	offset := new(big.Int)
	for i := 0; i < required; i++ {
		binary.BigEndian.PutUint32(counter[:], uint32(i))
		digest := crypto.Keccak256(seed[:], counter[:])
		remaining.SetInt64(int64(n - i))
		offset.SetBytes(digest)
		offset.Mod(offset, remaining)
		j := i + int(offset.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:required], nil
}

// ExpectedWitnesses 针对具体声明计算期望的见证子集。
func ExpectedWitnesses(witnesses []Witness, required int, identifier common.Hash, timestampS uint64) ([]Witness, error) {
	return SelectWitnesses(witnesses, required, SelectionSeed(identifier, timestampS))
}
