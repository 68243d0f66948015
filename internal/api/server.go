package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OpenAttest-Chain/internal/auth"
	"OpenAttest-Chain/internal/claim"
	"OpenAttest-Chain/internal/epoch"
	xerrors "OpenAttest-Chain/internal/errors"
	"OpenAttest-Chain/internal/job"
	"OpenAttest-Chain/internal/observability/metrics"
)

// Server 负责暴露 REST 接口：同步验证、异步任务与纪元管理。
type Server struct {
	addr     string
	verifier job.Verifier
	jobs     *job.Service
	epochs   *epoch.Service
	auth     *auth.Service
	fields   []job.FieldMarker
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, verifier job.Verifier, jobs *job.Service, epochs *epoch.Service, authSvc *auth.Service, fields []job.FieldMarker) *Server {
	return &Server{
		addr:     addr,
		verifier: verifier,
		jobs:     jobs,
		epochs:   epochs,
		auth:     authSvc,
		fields:   append([]job.FieldMarker(nil), fields...),
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回挂载了全部路由的处理器，便于测试直接调用。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/verify", instrument("verify", http.HandlerFunc(s.handleVerify)))
	mux.Handle("/api/v1/proofs", instrument("proofs", http.HandlerFunc(s.handleProofs)))
	mux.Handle("/api/v1/proofs/", instrument("proof", http.HandlerFunc(s.handleProofByID)))

	epochGuard := s.auth.Middleware(auth.MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodPost: {"epochs:write"},
		},
		AuditEvent: "epochs",
	})
	mux.Handle("/api/v1/epochs", epochGuard(instrument("epochs", http.HandlerFunc(s.handleEpochs))))
	mux.Handle("/api/v1/epochs/", epochGuard(instrument("epoch", http.HandlerFunc(s.handleEpochByID))))
	return mux
}

// handleVerify 同步执行一次证明验证并返回结论。
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.verifier == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "验证器未初始化"))
		return
	}

	var payload ProofPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	proof, err := payload.ToProof()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.verifier.Verify(r.Context(), proof)
	if err != nil {
		writeError(w, err)
		return
	}
	record := job.NewRecord(proof, result, s.fields)
	metrics.ObserveVerification(record.Outcome, record.Reason)
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleProofs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitProof(w, r)
	case http.MethodGet:
		s.handleListProofs(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleSubmitProof 创建异步验证任务。
func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}

	var payload SubmitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	proof, err := payload.Proof.ToProof()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.jobs.Submit(r.Context(), job.SubmitRequest{ID: payload.ID, Proof: proof})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newJobResponse(created))
}

// handleListProofs 按过滤条件返回任务列表。
func (s *Server) handleListProofs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}

	opts := listOptionsFromQuery(r)
	jobs, err := s.jobs.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	responses := make([]JobResponse, len(jobs))
	for i, item := range jobs {
		responses[i] = newJobResponse(item)
	}
	writeJSON(w, http.StatusOK, responses)
}

// handleProofByID 处理 /api/v1/proofs/{id} 与 /api/v1/proofs/stats。
func (s *Server) handleProofByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/v1/proofs/")
	if tail == "" || strings.Contains(tail, "/") {
		http.NotFound(w, r)
		return
	}
	if tail == "stats" {
		stats, err := s.jobs.Stats(r.Context(), statsOptionsFromQuery(r)...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
		return
	}

	found, err := s.lookupJob(r, tail)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(found))
}

// lookupJob 查询任务；携带 wait_seconds 参数时在窗口内轮询完成状态。
func (s *Server) lookupJob(r *http.Request, id string) (*job.Job, error) {
	waitSeconds := 0
	if raw := r.URL.Query().Get("wait_seconds"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			waitSeconds = parsed
		}
	}
	if waitSeconds == 0 {
		return s.jobs.Get(r.Context(), id)
	}
	if waitSeconds > 30 {
		waitSeconds = 30
	}
	waitCtx, cancel := context.WithTimeout(r.Context(), time.Duration(waitSeconds)*time.Second)
	defer cancel()
	found, err := s.jobs.WaitUntilCompleted(waitCtx, id, 200*time.Millisecond)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return s.jobs.Get(r.Context(), id)
		}
		return nil, err
	}
	return found, nil
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateEpoch(w, r)
	case http.MethodGet:
		s.handleListEpochs(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleCreateEpoch 追加一个新纪元，接替当前纪元。
func (s *Server) handleCreateEpoch(w http.ResponseWriter, r *http.Request) {
	if s.epochs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "见证注册表未初始化"))
		return
	}

	var payload EpochPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	witnesses, err := payload.ToWitnesses()
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.epochs.AddEpoch(r.Context(), witnesses, payload.RequiredSignatures)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := s.epochs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListEpochs(w http.ResponseWriter, r *http.Request) {
	if s.epochs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "见证注册表未初始化"))
		return
	}
	epochs, err := s.epochs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epochs)
}

// handleEpochByID 处理 /api/v1/epochs/current 与 /api/v1/epochs/{id}。
func (s *Server) handleEpochByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.epochs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "见证注册表未初始化"))
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/v1/epochs/")
	if tail == "" || strings.Contains(tail, "/") {
		http.NotFound(w, r)
		return
	}
	if tail == "current" {
		current, err := s.epochs.Current(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, current)
		return
	}

	id, err := strconv.ParseUint(tail, 10, 64)
	if err != nil {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "纪元编号必须是十进制整数"))
		return
	}
	found, err := s.epochs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// JobResponse 是任务状态的对外表示，不回显原始证明。
type JobResponse struct {
	ID         string      `json:"id"`
	Status     job.Status  `json:"status"`
	Attempts   int         `json:"attempts"`
	MaxRetries int         `json:"max_retries"`
	LastError  string      `json:"last_error,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
	Result     *job.Record `json:"result,omitempty"`
	CreatedAt  int64       `json:"created_at"`
	UpdatedAt  int64       `json:"updated_at"`
}

func newJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		LastError:  j.LastError,
		ErrorCode:  j.ErrorCode,
		Result:     j.Result,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

func listOptionsFromQuery(r *http.Request) []job.ListOption {
	opts := statsOptionsFromQuery(r)
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, job.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, job.WithOffset(parsed))
		}
	}
	if query.Get("order") == "asc" {
		opts = append(opts, job.WithSortOrder(job.SortByUpdatedAsc))
	}
	return opts
}

func statsOptionsFromQuery(r *http.Request) []job.ListOption {
	var opts []job.ListOption
	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]job.Status, 0, len(parts))
		for _, part := range parts {
			statuses = append(statuses, job.Status(strings.TrimSpace(part)))
		}
		opts = append(opts, job.WithStatuses(statuses...))
	}
	if raw := query.Get("has_result"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			opts = append(opts, job.WithResultPresence(parsed))
		}
	}
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse 是统一的错误响应体。
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	writeJSON(w, httpStatusOf(code), errorResponse{Error: err.Error(), Code: string(code)})
}

func httpStatusOf(code xerrors.Code) int {
	switch code {
	case xerrors.CodeNotFound, job.CodeJobNotFound:
		return http.StatusNotFound
	case xerrors.CodeInvalidArgument, job.CodeJobValidation, claim.CodeInvalidConfiguration:
		return http.StatusBadRequest
	case xerrors.CodeConflict, job.CodeJobConflict:
		return http.StatusConflict
	case xerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder 捕获响应状态码用于指标采集。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument 为处理器记录请求量、错误量与耗时指标。
func instrument(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
