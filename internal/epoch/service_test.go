package epoch

import (
	"context"
	"testing"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

func TestServiceAddEpochAssignsMonotonicIDs(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	first, err := service.AddEpoch(ctx, testWitnesses("0x01", "0x02"), 2)
	if err != nil {
		t.Fatalf("add first epoch: %v", err)
	}
	if first != 1 {
		t.Fatalf("first epoch id = %d, want 1", first)
	}

	second, err := service.AddEpoch(ctx, testWitnesses("0x03"), 1)
	if err != nil {
		t.Fatalf("add second epoch: %v", err)
	}
	if second != 2 {
		t.Fatalf("second epoch id = %d, want 2", second)
	}

	current, err := service.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != 2 {
		t.Fatalf("current epoch = %d, want 2", current.ID)
	}
}

func TestServiceAddEpochValidation(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	cases := []struct {
		name      string
		witnesses []claim.Witness
		required  int
	}{
		{"empty witnesses", nil, 1},
		{"zero required", testWitnesses("0x01"), 0},
		{"required exceeds witnesses", testWitnesses("0x01"), 2},
		{"duplicate address", testWitnesses("0x01", "0x01"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.AddEpoch(ctx, tc.witnesses, tc.required); err == nil {
				t.Fatalf("expected error")
			} else if xerrors.CodeOf(err) != claim.CodeInvalidConfiguration {
				t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
			}
		})
	}
}

func TestServiceEpochView(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, err := service.AddEpoch(ctx, testWitnesses("0x01", "0x02", "0x03"), 2); err != nil {
		t.Fatalf("add epoch: %v", err)
	}

	view, err := service.Epoch(ctx, 1)
	if err != nil {
		t.Fatalf("epoch view: %v", err)
	}
	if view.ID != 1 || view.RequiredSignatures != 2 || len(view.Witnesses) != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.ValidFrom == 0 {
		t.Fatalf("view missing ValidFrom")
	}

	if _, err := service.Epoch(ctx, 9); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestServiceBootstrapOnlySeedsEmptyRegistry(t *testing.T) {
	service := NewService(NewMemoryStore())
	ctx := context.Background()

	defs := Definitions{
		RequiredSignatures: 1,
		Witnesses: []WitnessDefinition{
			{Address: "0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0", Host: "wss://w1.example.org"},
		},
	}
	if err := service.Bootstrap(ctx, defs); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	current, err := service.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != 1 || len(current.Witnesses) != 1 {
		t.Fatalf("unexpected bootstrap epoch: %+v", current)
	}

	// 已有纪元时再次 Bootstrap 不得追加。
	if err := service.Bootstrap(ctx, defs); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	epochs, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(epochs) != 1 {
		t.Fatalf("bootstrap appended to non-empty registry: %d epochs", len(epochs))
	}
}
