package claim

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// 这些向量由独立的 keccak 实现离线计算，用于钉死哈希与序列化格式。
// 任何让这些断言失败的改动都会使已签发的声明无法验证。
var (
	infoFixture = Info{
		Provider:   "uidai-aadhar",
		Parameters: `{"url":"https://tathya.uidai.gov.in/ekyc","method":"GET"}`,
		Context:    `{"a":"","KYC_status":"ADVANCED","b":1}`,
	}
	infoFixtureHash = common.HexToHash("0xb278528f27e1c3752f950b6804f86ece1636da7896285ce8a52d7e1f7e2c8d47")
	emptyInfoHash   = common.HexToHash("0x30e2bfdaad2f3c218a1a8cc54fa1c4e6182b6b7f3bca273390cf587b50b47311")

	ownerFixture = common.HexToAddress("0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0")
)

const timestampFixture = uint64(1711089000)

func TestInfoHashGolden(t *testing.T) {
	if got := InfoHash(infoFixture); got != infoFixtureHash {
		t.Fatalf("InfoHash = %s, want %s", got.Hex(), infoFixtureHash.Hex())
	}
	if got := InfoHash(Info{}); got != emptyInfoHash {
		t.Fatalf("InfoHash(empty) = %s, want %s", got.Hex(), emptyInfoHash.Hex())
	}
}

func TestInfoHashFieldBoundaries(t *testing.T) {
	// 长度前缀必须阻止字段内容在边界间迁移后得到相同哈希。
	a := InfoHash(Info{Provider: "ab", Parameters: "", Context: ""})
	b := InfoHash(Info{Provider: "a", Parameters: "b", Context: ""})
	c := InfoHash(Info{Provider: "", Parameters: "ab", Context: ""})
	if a == b || b == c || a == c {
		t.Fatalf("field boundary collision: %s %s %s", a.Hex(), b.Hex(), c.Hex())
	}
}

func TestSerializeClaimDataGolden(t *testing.T) {
	data := CompleteClaimData{
		Identifier: infoFixtureHash,
		Owner:      ownerFixture,
		TimestampS: timestampFixture,
		Epoch:      3,
	}
	want := "b278528f27e1c3752f950b6804f86ece1636da7896285ce8a52d7e1f7e2c8d47\n" +
		"0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0\n" +
		"1711089000\n" +
		"3"
	if got := string(SerializeClaimData(data)); got != want {
		t.Fatalf("SerializeClaimData = %q, want %q", got, want)
	}
}

func TestSelectionSeedGolden(t *testing.T) {
	want := common.HexToHash("0xaf34879940bf5b8df31c7f446fbb43376f429199ae5334203318167cd4c363ae")
	if got := SelectionSeed(infoFixtureHash, timestampFixture); got != want {
		t.Fatalf("SelectionSeed = %s, want %s", got.Hex(), want.Hex())
	}

	next := common.HexToHash("0xb8bdf24a0096bde9ae78ee8c95223b0bf278fc99a98fb6ab870d9d4c716b12f1")
	if got := SelectionSeed(infoFixtureHash, timestampFixture+1); got != next {
		t.Fatalf("SelectionSeed(ts+1) = %s, want %s", got.Hex(), next.Hex())
	}
}
