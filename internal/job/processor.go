package job

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
	"OpenAttest-Chain/internal/observability/alerting"
	"OpenAttest-Chain/internal/observability/metrics"
	"OpenAttest-Chain/pkg/logger"
)

// Verifier 定义处理器所需的证明验证能力。
type Verifier interface {
	Verify(ctx context.Context, proof claim.Proof) (*claim.Result, error)
}

// FieldMarker 声明一个需要从证明上下文中提取的字段。
// Marker 是字段值左侧的完整前缀，例如 `"KYC_status":"`。
type FieldMarker struct {
	Name   string
	Marker string
}

// Processor 负责从队列消费任务并交给验证器处理。
type Processor struct {
	verifier    Verifier
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	fields      []FieldMarker
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithFieldMarkers 配置验证通过后需要提取的上下文字段。
func WithFieldMarkers(markers ...FieldMarker) ProcessorOption {
	return func(p *Processor) {
		p.fields = append(p.fields[:0], markers...)
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(verifier Verifier, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		verifier:    verifier,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动任务处理循环。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, jobID string) error {
	if p.store == nil || p.verifier == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if stdErrors.Is(err, ErrJobNotFound) || stdErrors.Is(err, ErrJobCompleted) || stdErrors.Is(err, ErrJobExhausted) {
			p.logDebug("跳过任务", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取任务失败", slog.Any("error", err), slog.String("job_id", jobID))
		p.emitAlert(ctx, &Job{ID: jobID}, CodeJobProcessing, err, "claim")
		return err
	}

	result, verifyErr := p.verifier.Verify(ctx, job.Proof)
	if verifyErr != nil {
		return p.handleVerificationFailure(ctx, job, verifyErr)
	}

	record := NewRecord(job.Proof, result, p.fields)
	if err := p.store.MarkSucceeded(ctx, job.ID, record); err != nil {
		logger.L().Error("记录验证结论失败", slog.Any("error", err), slog.String("job_id", job.ID))
		if storeErr := p.store.MarkFailed(ctx, job.ID, CodeJobProcessing, err.Error(), false); storeErr != nil {
			logger.L().Error("回写失败状态出错", slog.Any("error", storeErr), slog.String("job_id", job.ID))
			return storeErr
		}
		if pubErr := p.producer.Publish(ctx, job.ID); pubErr != nil {
			return xerrors.Wrap(CodeJobPublish, pubErr, fmt.Sprintf("任务 %s 在记录结论失败后重投失败", job.ID))
		}
		logger.Audit().Warn("任务记录结论失败后重试",
			slog.String("job_id", job.ID),
			slog.String("identifier", record.Identifier),
			slog.String("error", err.Error()),
		)
		return nil
	}
	metrics.ObserveVerification(record.Outcome, record.Reason)
	logger.Audit().Info("验证任务完成",
		slog.String("job_id", job.ID),
		slog.String("identifier", record.Identifier),
		slog.String("outcome", record.Outcome),
		slog.String("reason", record.Reason),
		slog.Uint64("epoch", record.Epoch),
		slog.Int("signers", len(record.Signers)),
	)
	return nil
}

// NewRecord 将验证结论固化为任务记录。只有验证通过的证明才执行
// 上下文字段提取，拒绝的证明不读取其上下文。
func NewRecord(proof claim.Proof, result *claim.Result, fields []FieldMarker) Record {
	record := Record{
		Outcome:    string(result.Outcome),
		Reason:     string(result.Reason),
		Identifier: result.Identifier.Hex(),
		Owner:      strings.ToLower(proof.SignedClaim.Data.Owner.Hex()),
		Epoch:      result.Epoch,
	}
	if len(result.Signers) > 0 {
		record.Signers = make([]string, len(result.Signers))
		for i, signer := range result.Signers {
			record.Signers[i] = strings.ToLower(signer.Hex())
		}
	}
	if result.Valid() && len(fields) > 0 {
		record.Fields = make(map[string]string, len(fields))
		for _, field := range fields {
			record.Fields[field.Name] = claim.ExtractField(proof.Info.Context, field.Marker)
		}
	}
	return record
}

func (p *Processor) handleVerificationFailure(ctx context.Context, job *Job, verifyErr error) error {
	code := xerrors.CodeOf(verifyErr)
	if code == xerrors.CodeUnknown {
		code = CodeJobProcessing
	}
	retryable := xerrors.RetryableError(verifyErr)
	terminal := job.Attempts >= job.MaxRetries || !retryable

	if storeErr := p.store.MarkFailed(ctx, job.ID, code, verifyErr.Error(), terminal); storeErr != nil {
		logger.L().Error("标记任务失败状态出错", slog.Any("error", storeErr), slog.String("job_id", job.ID))
		return storeErr
	}
	logger.Audit().Warn("验证任务执行失败",
		slog.String("job_id", job.ID),
		slog.String("identifier", job.Proof.SignedClaim.Data.Identifier.Hex()),
		slog.Bool("terminal", terminal),
		slog.String("error", verifyErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_retries", job.MaxRetries),
	)

	stage := "retry"
	if terminal {
		stage = "terminal"
	} else if !retryable {
		stage = "non_retryable"
	}
	p.emitAlert(ctx, job, code, verifyErr, stage)

	if retryable && !terminal {
		if pubErr := p.producer.Publish(ctx, job.ID); pubErr != nil {
			return xerrors.Wrap(CodeJobPublish, pubErr, fmt.Sprintf("任务 %s 重投失败", job.ID))
		}
		p.logDebug("任务已重新排队", slog.String("job_id", job.ID), slog.Int("attempts", job.Attempts))
	}
	return nil
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		args := make([]any, len(attrs))
		for i, attr := range attrs {
			args[i] = attr
		}
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) emitAlert(ctx context.Context, job *Job, code xerrors.Code, cause error, stage string) {
	if p == nil || p.alerter == nil || job == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	if cause != nil {
		message = cause.Error()
	}
	metadata := map[string]string{
		"stage": stage,
	}
	if cause != nil {
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		JobID:      job.ID,
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("job_id", job.ID),
			slog.String("stage", stage),
		)
	}
}
