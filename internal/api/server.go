package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"NFTScout/internal/agent"
	"NFTScout/internal/auth"
	"NFTScout/internal/collection"
	xerrors "NFTScout/internal/errors"
	"NFTScout/internal/observability/metrics"
	"NFTScout/internal/storage/mysql"
	"NFTScout/internal/stream"
)

// Server 负责暴露 REST 与事件流接口，供客户端驱动会话。
type Server struct {
	addr       string
	agent      *agent.Agent
	repo       mysql.CollectionRepository
	normalizer *collection.Normalizer
	history    stream.HistorySink
	auth       *auth.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, ag *agent.Agent, repo mysql.CollectionRepository,
	normalizer *collection.Normalizer, history stream.HistorySink, authService *auth.Service) *Server {
	return &Server{
		addr:       addr,
		agent:      ag,
		repo:       repo,
		normalizer: normalizer,
		history:    history,
		auth:       authService,
	}
}

// Handler 组装完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	guard := func(next http.Handler) http.Handler { return next }
	if s.auth.Enabled() {
		guard = s.auth.Middleware(auth.MiddlewareConfig{})
	}

	mux.Handle("/api/v1/collections/sessions", guard(observed("sessions", http.HandlerFunc(s.handleSessions))))
	mux.Handle("/api/v1/collections", guard(observed("collections", http.HandlerFunc(s.handleCollections))))
	mux.Handle("/api/v1/collections/", guard(observed("collection_lookup", http.HandlerFunc(s.handleCollectionByID))))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return mux
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// handleSessions 启动一个会话并以 SSE 推送事件。
// 校验与鉴权失败都发生在流开始之前，流一旦开始状态码不再改变。
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 POST"))
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "Agent 未初始化"))
		return
	}

	var req agent.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Wrap(xerrors.CodeValidation, err, "请求体解析失败"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeValidation, "message 不能为空"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, xerrors.New(xerrors.CodeTransport, "当前连接不支持事件流"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-Id", req.SessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writer := stream.NewWriter(req.SessionID, s.history)
	go func() {
		defer writer.Close()
		// 会话状态随响应流存亡，流结束后即释放。
		defer s.agent.DiscardSession(context.WithoutCancel(r.Context()), req.SessionID)
		_ = s.agent.RunSession(r.Context(), req, writer)
	}()

	encoder := json.NewEncoder(w)
	for {
		select {
		case event, ok := <-writer.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, encoder, event); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleCollections 处理显式保存集合的请求。
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 POST"))
		return
	}
	if s.repo == nil || s.normalizer == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "存储未初始化"))
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Wrap(xerrors.CodeValidation, err, "请求体解析失败"))
		return
	}

	candidate, err := s.normalizer.NormalizeCandidate(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, xerrors.Wrap(xerrors.CodeValidation, err, "集合载荷不合法"))
		return
	}
	if !candidate.Complete() {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeValidation, "集合信息不完整，缺少名称、地址或链标识"))
		return
	}

	encoded, err := json.Marshal(candidate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, xerrors.Wrap(xerrors.CodeNormalization, err, "序列化集合失败"))
		return
	}

	id, err := s.repo.Save(r.Context(), json.RawMessage(encoded))
	if err != nil {
		// 内部细节不外露，客户端只得到通用的持久化错误。
		writeError(w, http.StatusInternalServerError, xerrors.New(xerrors.CodePersistence, "保存集合失败"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

// handleCollectionByID 按标识查询集合记录。
func (s *Server) handleCollectionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, xerrors.New(xerrors.CodeInvalidArgument, "仅支持 GET"))
		return
	}
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, xerrors.New(xerrors.CodeInitializationFailure, "存储未初始化"))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/collections/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, xerrors.New(xerrors.CodeValidation, "集合标识不合法"))
		return
	}

	record, err := s.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, mysql.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, xerrors.New(xerrors.CodePersistence, "查询集合失败"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         record.ID,
		"data":       record.Data,
		"created_at": record.CreatedAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeSSE 以 "event: 事件类型" 加 "data: JSON" 的帧格式写出一条事件。
func writeSSE(w http.ResponseWriter, encoder *json.Encoder, event stream.Event) error {
	if _, err := w.Write([]byte("event: " + string(event.Kind) + "\ndata: ")); err != nil {
		return err
	}
	if err := encoder.Encode(event); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(xerrors.CodeOf(err)),
			"message": err.Error(),
		},
	})
}

// observed 为处理器记录请求量与时延指标。
func observed(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(handler, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush 透传 Flush 能力，事件流处理器依赖它。
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
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
