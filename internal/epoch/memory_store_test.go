package epoch

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

func testWitnesses(addresses ...string) []claim.Witness {
	witnesses := make([]claim.Witness, len(addresses))
	for i, address := range addresses {
		witnesses[i] = claim.Witness{Address: common.HexToAddress(address)}
	}
	return witnesses
}

func TestMemoryStoreAppendSealsPrevious(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &Epoch{
		ID:                 1,
		Witnesses:          testWitnesses("0x01"),
		RequiredSignatures: 1,
		ValidFrom:          1000,
	}
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}

	second := &Epoch{
		ID:                 2,
		Witnesses:          testWitnesses("0x02"),
		RequiredSignatures: 1,
		ValidFrom:          2000,
	}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	sealed, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if sealed.ValidUntil != 2000 {
		t.Fatalf("first epoch ValidUntil = %d, want 2000", sealed.ValidUntil)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != 2 || latest.ValidUntil != 0 {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}

func TestMemoryStoreAppendConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	epoch := &Epoch{ID: 1, Witnesses: testWitnesses("0x01"), RequiredSignatures: 1, ValidFrom: 1000}
	if err := store.Append(ctx, epoch); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := store.Append(ctx, &Epoch{ID: 1, Witnesses: testWitnesses("0x02"), RequiredSignatures: 1, ValidFrom: 2000})
	if err == nil {
		t.Fatalf("expected conflict")
	}
	if xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), 7); !stdErrors.Is(err, ErrEpochNotFound) {
		t.Fatalf("expected ErrEpochNotFound, got %v", err)
	}
	if _, err := store.Latest(context.Background()); !stdErrors.Is(err, ErrNoCurrentEpoch) {
		t.Fatalf("expected ErrNoCurrentEpoch, got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		epoch := &Epoch{ID: i, Witnesses: testWitnesses("0x01"), RequiredSignatures: 1, ValidFrom: int64(i) * 1000}
		if err := store.Append(ctx, epoch); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	epochs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(epochs) != 3 {
		t.Fatalf("expected 3 epochs, got %d", len(epochs))
	}
	for i, epoch := range epochs {
		if epoch.ID != uint64(i+1) {
			t.Fatalf("epochs out of order: %+v", epochs)
		}
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	epoch := &Epoch{ID: 1, Witnesses: testWitnesses("0x01"), RequiredSignatures: 1, ValidFrom: 1000}
	if err := store.Append(ctx, epoch); err != nil {
		t.Fatalf("append: %v", err)
	}

	fetched, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fetched.Witnesses[0].Address = common.HexToAddress("0xff")

	again, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Witnesses[0].Address != common.HexToAddress("0x01") {
		t.Fatalf("store state mutated through returned copy")
	}
}
