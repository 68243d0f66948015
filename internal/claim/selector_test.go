package claim

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenAttest-Chain/internal/errors"
)

func witnessFixtures(n int) []Witness {
	witnesses := make([]Witness, n)
	for i := range witnesses {
		witnesses[i] = Witness{
			Address: common.HexToAddress(fmt.Sprintf("0x%040x", i+1)),
			Host:    fmt.Sprintf("wss://witness-%d.example.org", i),
		}
	}
	return witnesses
}

func assertSelection(t *testing.T, got []Witness, pool []Witness, indices []int) {
	t.Helper()
	if len(got) != len(indices) {
		t.Fatalf("selected %d witnesses, want %d", len(got), len(indices))
	}
	for i, idx := range indices {
		if got[i].Address != pool[idx].Address {
			t.Fatalf("selection[%d] = %s, want pool[%d] = %s",
				i, got[i].Address.Hex(), idx, pool[idx].Address.Hex())
		}
	}
}

// 离线计算的选择向量：种子来自 TestSelectionSeedGolden 的固定声明。
func TestSelectWitnessesGolden(t *testing.T) {
	seed := SelectionSeed(infoFixtureHash, timestampFixture)

	pool := witnessFixtures(7)
	selected, err := SelectWitnesses(pool, 3, seed)
	if err != nil {
		t.Fatalf("select 3 of 7: %v", err)
	}
	assertSelection(t, selected, pool, []int{0, 6, 2})

	full := witnessFixtures(5)
	all, err := SelectWitnesses(full, 5, seed)
	if err != nil {
		t.Fatalf("select 5 of 5: %v", err)
	}
	assertSelection(t, all, full, []int{3, 4, 0, 1, 2})
}

func TestSelectWitnessesTimestampSensitivity(t *testing.T) {
	pool := witnessFixtures(7)
	shifted, err := SelectWitnesses(pool, 3, SelectionSeed(infoFixtureHash, timestampFixture+1))
	if err != nil {
		t.Fatalf("select with shifted timestamp: %v", err)
	}
	assertSelection(t, shifted, pool, []int{4, 2, 1})
}

func TestSelectWitnessesDeterministic(t *testing.T) {
	pool := witnessFixtures(9)
	seed := SelectionSeed(infoFixtureHash, timestampFixture)

	first, err := SelectWitnesses(pool, 4, seed)
	if err != nil {
		t.Fatalf("first selection: %v", err)
	}
	second, err := SelectWitnesses(pool, 4, seed)
	if err != nil {
		t.Fatalf("second selection: %v", err)
	}
	for i := range first {
		if first[i].Address != second[i].Address {
			t.Fatalf("selection not deterministic at %d: %s vs %s",
				i, first[i].Address.Hex(), second[i].Address.Hex())
		}
	}
}

func TestSelectWitnessesDoesNotMutateInput(t *testing.T) {
	pool := witnessFixtures(7)
	original := make([]Witness, len(pool))
	copy(original, pool)

	if _, err := SelectWitnesses(pool, 3, SelectionSeed(infoFixtureHash, timestampFixture)); err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := range pool {
		if pool[i].Address != original[i].Address {
			t.Fatalf("input slice mutated at %d", i)
		}
	}
}

func TestSelectWitnessesInvalidParameters(t *testing.T) {
	seed := SelectionSeed(infoFixtureHash, timestampFixture)
	cases := []struct {
		name      string
		witnesses []Witness
		required  int
	}{
		{"empty pool", nil, 1},
		{"zero required", witnessFixtures(3), 0},
		{"negative required", witnessFixtures(3), -1},
		{"required exceeds pool", witnessFixtures(3), 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SelectWitnesses(tc.witnesses, tc.required, seed); err == nil {
				t.Fatalf("expected error")
			} else if xerrors.CodeOf(err) != CodeInvalidConfiguration {
				t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
			}
		})
	}
}
