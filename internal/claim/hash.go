package claim

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// InfoHash 计算声明元数据的规范标识。
// 三个字段按 provider、parameters、context 的固定顺序参与哈希，
// 每个字段前置 4 字节大端长度，保证不同的字段切分不会产生相同输入。
// 该函数必须与链下签名工具逐字节一致，任何改动都会使已签发的声明全部失效。
func InfoHash(info Info) common.Hash {
	fields := []string{info.Provider, info.Parameters, info.Context}
	size := 0
	for _, f := range fields {
		size += 4 + len(f)
	}
	buf := make([]byte, 0, size)
	var length [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(length[:], uint32(len(f)))
		buf = append(buf, length[:]...)
		buf = append(buf, f...)
	}
	return common.BytesToHash(crypto.Keccak256(buf))
}

// SerializeClaimData 生成见证节点签名的规范消息。
// 四个字段各占一行，依次为：标识（64 位小写十六进制，无 0x 前缀）、
// 持有者地址（0x 前缀小写十六进制）、时间戳（十进制）、纪元（十进制）。
// 渲染规则已冻结，验证方与签名方必须使用完全相同的字节序列。
func SerializeClaimData(data CompleteClaimData) []byte {
	lines := []string{
		hex.EncodeToString(data.Identifier[:]),
		strings.ToLower(data.Owner.Hex()),
		strconv.FormatUint(data.TimestampS, 10),
		strconv.FormatUint(data.Epoch, 10),
	}
	return []byte(strings.Join(lines, "\n"))
}

// SelectionSeed 由声明标识与时间戳派生见证选择的种子。
func SelectionSeed(identifier common.Hash, timestampS uint64) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestampS)
	return common.BytesToHash(crypto.Keccak256(identifier[:], ts[:]))
}
