package job

import (
	stdErrors "errors"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

// Status 表示验证任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record 保存一次验证的结论。Succeeded 的任务必定带有 Record，
// 无论证明被接受还是被拒绝——拒绝是验证的正常结论而非任务失败。
type Record struct {
	Outcome    string            `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	Identifier string            `json:"identifier"`
	Owner      string            `json:"owner"`
	Epoch      uint64            `json:"epoch"`
	Signers    []string          `json:"signers,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Job 描述排队等待验证的证明任务。
type Job struct {
	ID         string      `json:"id"`
	Proof      claim.Proof `json:"proof"`
	Status     Status      `json:"status"`
	Attempts   int         `json:"attempts"`
	MaxRetries int         `json:"max_retries"`
	LastError  string      `json:"last_error,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
	Result     *Record     `json:"result,omitempty"`
	CreatedAt  int64       `json:"created_at"`
	UpdatedAt  int64       `json:"updated_at"`
}

var (
	// ErrJobNotFound 表示指定的验证任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "verification job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "verification job conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrJobCompleted 表示任务已经有了验证结论。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "verification job already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrJobExhausted 表示任务的重试次数已经耗尽。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "verification job retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_RETRIES_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "JOB_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:  "verification job not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:  "verification job conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:  "verification job already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:  "verification job retries exhausted",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:  "verification job validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:   "failed to publish verification job",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{
		Message:   "verification job processing failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}

// IsJobError 判断错误是否对应给定的任务错误码。
func IsJobError(err error, target xerrors.Code) bool {
	if err == nil {
		return false
	}
	switch {
	case stdErrors.Is(err, ErrJobNotFound):
		return target == CodeJobNotFound
	case stdErrors.Is(err, ErrJobConflict):
		return target == CodeJobConflict
	case stdErrors.Is(err, ErrJobCompleted):
		return target == CodeJobCompleted
	case stdErrors.Is(err, ErrJobExhausted):
		return target == CodeJobExhausted
	}
	return false
}

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	clone := *record
	clone.Signers = append([]string(nil), record.Signers...)
	if record.Fields != nil {
		clone.Fields = make(map[string]string, len(record.Fields))
		for k, v := range record.Fields {
			clone.Fields[k] = v
		}
	}
	return &clone
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.Result = cloneRecord(job.Result)
	signatures := make([][]byte, len(job.Proof.SignedClaim.Signatures))
	for i, sig := range job.Proof.SignedClaim.Signatures {
		signatures[i] = append([]byte(nil), sig...)
	}
	clone.Proof.SignedClaim.Signatures = signatures
	return &clone
}
