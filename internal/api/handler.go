package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/pack-calculator/internal/calculator"
	"github.com/eugenenazirov/pack-calculator/internal/metrics"
	"github.com/eugenenazirov/pack-calculator/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires calculator and storage dependencies into HTTP handlers.
type Handler struct {
	calculator calculator.Calculator
	storage    storage.Storage
	metrics    *metrics.Metrics
	logger     *zap.Logger

	clock       func() time.Time
	calcTimeout time.Duration

	mu                 sync.RWMutex
	packSizesUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger used for registry mutations and failed calculations.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics enables calculation and HTTP metrics. A nil value disables them.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithCalculationTimeout bounds how long a single calculation may run. A
// non-positive duration leaves calculations bounded only by the request.
func WithCalculationTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.calcTimeout = d
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(calc calculator.Calculator, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		calculator: calc,
		storage:    store,
		logger:     zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.packSizesUpdatedAt = h.clock()
	if sizes, err := store.GetPackSizes(); err == nil {
		h.metrics.SetPackSizeCount(len(sizes))
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPackSizes(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.storage.GetPackSizes()
	if err != nil {
		h.requestLogger(r).Error("read pack sizes", zap.Error(err))
		writeInternalError(w)
		return
	}

	resp := packSizesResponse{
		PackSizes: sizes,
		UpdatedAt: h.currentPackSizesUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetPackSizes(w http.ResponseWriter, r *http.Request) {
	var req packSizesRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sizes, err := h.storage.SetPackSizes(req.PackSizes)
	h.respondMutation(w, r, "replace", http.StatusOK, "Pack sizes updated successfully", sizes, err)
}

func (h *Handler) handleAddPackSize(w http.ResponseWriter, r *http.Request) {
	var req packSizeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sizes, err := h.storage.AddPackSize(*req.Size)
	h.respondMutation(w, r, "add", http.StatusCreated, "Pack size added successfully", sizes, err, zap.Int("size", *req.Size))
}

func (h *Handler) handleRemovePackSize(w http.ResponseWriter, r *http.Request) {
	var req removePackSizeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sizes, err := h.storage.RemovePackSize(*req.Size)
	h.respondMutation(w, r, "remove", http.StatusOK, "Pack size removed successfully", sizes, err, zap.Int("size", *req.Size))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	h.calculate(w, r, *req.Amount, req.PackSizes)
}

func (h *Handler) handleCalculateQuery(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, codeInvalidAmount, "amount query parameter is required")
		return
	}

	amount, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidAmount, "amount must be a positive integer")
		return
	}

	h.calculate(w, r, amount, nil)
}

// calculate runs the optimizer against override, or the registry when
// override is empty. The registry is never modified.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request, amount int, override []int) {
	packSizes := override
	if len(packSizes) == 0 {
		sizes, err := h.storage.GetPackSizes()
		if err != nil {
			h.requestLogger(r).Error("read pack sizes", zap.Error(err))
			writeInternalError(w)
			return
		}
		packSizes = sizes
	}

	ctx := r.Context()
	if h.calcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.calcTimeout)
		defer cancel()
	}

	start := time.Now()
	plan, err := h.calculator.CalculatePacks(ctx, amount, packSizes)
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeRejected
		if _, _, known := classifyError(err); !known {
			outcome = metrics.OutcomeError
			h.requestLogger(r).Error("calculation failed",
				zap.Int("amount", amount),
				zap.Ints("pack_sizes", packSizes),
				zap.Error(err),
			)
		}
		h.metrics.ObserveCalculation(outcome, elapsed, 0)
		writeDomainError(w, err)
		return
	}

	h.metrics.ObserveCalculation(metrics.OutcomeSuccess, elapsed, plan.Waste())
	writeJSON(w, http.StatusOK, newCalculateResponse(plan, elapsed))
}

func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, action string, status int, message string, sizes []int, err error, fields ...zap.Field) {
	logger := h.requestLogger(r).With(zap.String("action", action))
	if err != nil {
		if _, _, known := classifyError(err); known {
			logger.Info("pack size update rejected", append(fields, zap.Error(err))...)
		} else {
			logger.Error("pack size update failed", append(fields, zap.Error(err))...)
		}
		writeDomainError(w, err)
		return
	}

	h.markPackSizesUpdated()
	h.metrics.SetPackSizeCount(len(sizes))
	logger.Info("pack sizes updated", append(fields, zap.Ints("pack_sizes", sizes))...)

	resp := packSizesResponse{
		PackSizes: sizes,
		UpdatedAt: h.currentPackSizesUpdatedAt(),
		Message:   message,
	}
	writeJSON(w, status, resp)
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	return h.logger.With(zap.String("request_id", requestIDFromContext(r.Context())))
}

func (h *Handler) currentPackSizesUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.packSizesUpdatedAt
}

func (h *Handler) markPackSizesUpdated() {
	h.mu.Lock()
	h.packSizesUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func newCalculateResponse(plan calculator.PackPlan, elapsed time.Duration) calculateResponse {
	packs := make(map[string]int, len(plan.Packs))
	for size, qty := range plan.Packs {
		packs[strconv.Itoa(size)] = qty
	}

	return calculateResponse{
		OrderAmount:       plan.OrderAmount,
		TotalItems:        plan.TotalItems,
		TotalPacks:        plan.TotalPacks,
		Waste:             plan.Waste(),
		Packs:             packs,
		PackSizesUsed:     plan.PackSizes,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
}

type calculateResponse struct {
	OrderAmount       int            `json:"order_amount"`
	TotalItems        int            `json:"total_items"`
	TotalPacks        int            `json:"total_packs"`
	Waste             int            `json:"waste"`
	Packs             map[string]int `json:"packs"`
	PackSizesUsed     []int          `json:"pack_sizes_used"`
	CalculationTimeMs int64          `json:"calculation_time_ms"`
}

type packSizesResponse struct {
	PackSizes []int     `json:"pack_sizes"`
	UpdatedAt time.Time `json:"updated_at"`
	Message   string    `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
