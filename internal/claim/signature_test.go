package claim

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	xerrors "OpenAttest-Chain/internal/errors"
)

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := CompleteClaimData{
		Identifier: infoFixtureHash,
		Owner:      ownerFixture,
		TimestampS: timestampFixture,
		Epoch:      3,
	}

	signature, err := SignClaimData(data, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(signature))
	}

	signer, err := RecoverSigner(SerializeClaimData(data), signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered %s, want %s", signer.Hex(), crypto.PubkeyToAddress(key.PublicKey).Hex())
	}
}

func TestRecoverSignerAcceptsLegacyV(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := CompleteClaimData{Identifier: infoFixtureHash, Owner: ownerFixture, TimestampS: timestampFixture, Epoch: 3}

	signature, err := SignClaimData(data, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// 链上工具常以 27/28 表示恢复参数。
	legacy := bytes.Clone(signature)
	legacy[64] += 27

	signer, err := RecoverSigner(SerializeClaimData(data), legacy)
	if err != nil {
		t.Fatalf("recover legacy v: %v", err)
	}
	if signer != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered %s, want %s", signer.Hex(), crypto.PubkeyToAddress(key.PublicKey).Hex())
	}
}

func TestRecoverSignerTamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := CompleteClaimData{Identifier: infoFixtureHash, Owner: ownerFixture, TimestampS: timestampFixture, Epoch: 3}

	signature, err := SignClaimData(data, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := data
	tampered.Epoch = 4
	signer, err := RecoverSigner(SerializeClaimData(tampered), signature)
	if err != nil {
		// 恢复失败等价于签名无效，同样视为篡改被发现。
		return
	}
	if signer == crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("tampered message still recovered the original signer")
	}
}

func TestRecoverSignerMalformed(t *testing.T) {
	message := []byte("message")
	cases := []struct {
		name      string
		signature []byte
	}{
		{"too short", make([]byte, 64)},
		{"too long", make([]byte, 66)},
		{"v out of range", append(make([]byte, 64), 5)},
		{"v far out of range", append(make([]byte, 64), 0xff)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RecoverSigner(message, tc.signature); err == nil {
				t.Fatalf("expected error")
			} else if xerrors.CodeOf(err) != CodeInvalidSignature {
				t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
			}
		})
	}
}

func TestSignClaimDataNilKey(t *testing.T) {
	if _, err := SignClaimData(CompleteClaimData{}, nil); err == nil {
		t.Fatalf("expected error for nil key")
	}
}
