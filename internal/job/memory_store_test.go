package job

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"OpenAttest-Chain/internal/claim"
)

func testProof() claim.Proof {
	return claim.Proof{
		Info: claim.Info{
			Provider:   "uidai-aadhar",
			Parameters: `{"url":"https://tathya.uidai.gov.in/ekyc","method":"GET"}`,
			Context:    `{"KYC_status":"ADVANCED"}`,
		},
		SignedClaim: claim.SignedClaim{
			Data: claim.CompleteClaimData{
				Identifier: common.HexToHash("0x01"),
				Owner:      common.HexToAddress("0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0"),
				TimestampS: 1711089000,
				Epoch:      1,
			},
			Signatures: [][]byte{{0x01}},
		},
	}
}

func newTestJob(id string) *Job {
	return &Job{ID: id, Proof: testProof(), Status: StatusPending, MaxRetries: 3}
}

func TestMemoryStoreClaimStateMachine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := store.Claim(ctx, "j1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed job: %+v", claimed)
	}

	// 运行中的任务不能再次领取。
	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobConflict) {
		t.Fatalf("expected ErrJobConflict, got %v", err)
	}

	if err := store.MarkSucceeded(ctx, "j1", Record{Outcome: "valid"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobCompleted) {
		t.Fatalf("expected ErrJobCompleted, got %v", err)
	}
}

func TestMemoryStoreClaimExhaustsRetries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob("j1")
	job.MaxRetries = 2
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if _, err := store.Claim(ctx, "j1"); err != nil {
			t.Fatalf("claim attempt %d: %v", attempt, err)
		}
		if err := store.MarkFailed(ctx, "j1", CodeJobProcessing, "boom", false); err != nil {
			t.Fatalf("mark failed attempt %d: %v", attempt, err)
		}
	}

	if _, err := store.Claim(ctx, "j1"); !stdErrors.Is(err, ErrJobExhausted) {
		t.Fatalf("expected ErrJobExhausted, got %v", err)
	}
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newTestJob("j1")); !stdErrors.Is(err, ErrJobConflict) {
		t.Fatalf("expected ErrJobConflict, got %v", err)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	for _, id := range []string{"j1", "j2", "j3"} {
		if err := store.Create(ctx, newTestJob(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	if err := store.MarkFailed(ctx, "j2", CodeJobProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "j3", Record{Outcome: "valid"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.jobs["j1"].UpdatedAt = base.Unix()
	store.jobs["j2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.jobs["j3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	if all[0].ID != "j3" {
		t.Fatalf("expected newest job first, got %s", all[0].ID)
	}

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "j2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	withResult, err := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("list with result: %v", err)
	}
	if len(withResult) != 1 || withResult[0].ID != "j3" {
		t.Fatalf("unexpected result list: %+v", withResult)
	}

	since := base.Add(15 * time.Second)
	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(since)}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 jobs to match since filter, got %d", len(recent))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newTestJob(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	if err := store.MarkFailed(ctx, "b", CodeJobProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", Record{Outcome: "rejected", Reason: "UNKNOWN_EPOCH"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.jobs["a"].UpdatedAt = base.Unix()
	store.jobs["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.jobs["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected newest timestamp: %d", stats.NewestUpdatedAt)
	}
	if stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected oldest timestamp: %d", stats.OldestUpdatedAt)
	}

	failedOnly, err := store.Stats(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("stats failed only: %v", err)
	}
	if failedOnly.Total != 1 || failedOnly.Failed != 1 {
		t.Fatalf("unexpected failed stats: %+v", failedOnly)
	}
}
