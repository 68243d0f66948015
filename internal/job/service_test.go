package job

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"

	xerrors "OpenAttest-Chain/internal/errors"
)

// stubProducer 记录发布的任务 ID，便于断言入队行为。
type stubProducer struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *stubProducer) Publish(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	return nil
}

func (p *stubProducer) Close() error { return nil }

func (p *stubProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestServiceSubmitGeneratesID(t *testing.T) {
	producer := &stubProducer{}
	service := NewService(NewMemoryStore(), producer, 3)

	job, err := service.Submit(context.Background(), SubmitRequest{Proof: testProof()})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("submit did not assign a job ID")
	}
	if job.Status != StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if producer.count() != 1 {
		t.Fatalf("publish count = %d, want 1", producer.count())
	}
}

func TestServiceSubmitValidation(t *testing.T) {
	service := NewService(NewMemoryStore(), &stubProducer{}, 3)

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing provider", func(req *SubmitRequest) { req.Proof.Info.Provider = "  " }},
		{"no signatures", func(req *SubmitRequest) { req.Proof.SignedClaim.Signatures = nil }},
		{"zero timestamp", func(req *SubmitRequest) { req.Proof.SignedClaim.Data.TimestampS = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := SubmitRequest{Proof: testProof()}
			tc.mutate(&req)
			_, err := service.Submit(context.Background(), req)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if xerrors.CodeOf(err) != CodeJobValidation {
				t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
			}
		})
	}
}

func TestServiceSubmitIsIdempotentByID(t *testing.T) {
	producer := &stubProducer{}
	service := NewService(NewMemoryStore(), producer, 3)
	ctx := context.Background()

	first, err := service.Submit(ctx, SubmitRequest{ID: "fixed-id", Proof: testProof()})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := service.Submit(ctx, SubmitRequest{ID: "fixed-id", Proof: testProof()})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("idempotent submit returned different jobs: %s vs %s", first.ID, second.ID)
	}
	if producer.count() != 1 {
		t.Fatalf("duplicate submit republished: %d publishes", producer.count())
	}
}

func TestServiceSubmitPublishFailureMarksJobFailed(t *testing.T) {
	producer := &stubProducer{err: xerrors.New(xerrors.CodeQueueFailure, "broker down")}
	service := NewService(NewMemoryStore(), producer, 3)
	ctx := context.Background()

	_, err := service.Submit(ctx, SubmitRequest{ID: "doomed", Proof: testProof()})
	if err == nil {
		t.Fatalf("expected publish failure")
	}
	if xerrors.CodeOf(err) != CodeJobPublish {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}

	job, getErr := service.Get(ctx, "doomed")
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if job.Status != StatusFailed || job.ErrorCode != string(CodeJobPublish) {
		t.Fatalf("unexpected job state: %+v", job)
	}
}

func TestServiceGetMissingJob(t *testing.T) {
	service := NewService(NewMemoryStore(), &stubProducer{}, 3)
	if _, err := service.Get(context.Background(), "nope"); !stdErrors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
