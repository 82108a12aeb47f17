package mlog

import (
	"sync"
	"time"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
)

// WideEvent accumulates everything worth knowing about one orchestrator call
// — command name, stream touched, accounting identifiers, error/DB/cache/
// external-call metrics — into a single structured log line emitted once at
// the end of the call, rather than many scattered log statements.
//
// All setters are safe for concurrent use; a command handler and the
// suspension points it awaits (spec §5) may update the same WideEvent from
// different goroutines.
type WideEvent struct {
	mu sync.RWMutex

	RequestID string
	TraceID   string
	SpanID    string

	// Method is the orchestrator operation name (e.g. "PostJournalEntry");
	// Path is the aggregate stream id the operation targeted.
	Method string
	Path   string
	Route  string

	StatusCode   int
	ResponseSize int64
	DurationMS   float64
	Outcome      string
	StartTime    time.Time

	Service     string
	Version     string
	Environment string

	TenantID        string
	LedgerStreamID  string
	JournalEntryID  string
	JournalEntryTyp string
	EntryAmount     string
	EntryCurrency   string
	AccountID       string
	AssetCode       string

	LineCount  int
	DebitLines int
	CreditLines int

	UserID     string
	UserRole   string
	AuthMethod string

	ErrorOccurred  bool
	ErrorType      string
	ErrorCode      string
	ErrorMessage   string
	ErrorRetryable bool

	DBQueryCount  int
	DBQueryTimeMS float64

	CacheHits   int
	CacheMisses int

	ExternalCallCount  int
	ExternalCallTimeMS float64

	IdempotencyKey string
	IdempotencyHit bool

	Custom map[string]any

	emitted bool
}

// SetOrganization records the tenant the call acted on. Named to mirror the
// teacher's HTTP-layer wide event; here it carries the event-store tenantId.
func (e *WideEvent) SetOrganization(tenantID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TenantID = tenantID
}

// SetLedger records the stream id the operation replayed or appended to.
func (e *WideEvent) SetLedger(streamID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LedgerStreamID = streamID
}

// SetTransaction records the journal entry being posted.
func (e *WideEvent) SetTransaction(id, entryType, amount, currency string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.JournalEntryID = id
	e.JournalEntryTyp = entryType
	e.EntryAmount = amount
	e.EntryCurrency = currency
}

// SetAccount records the account code a command targeted.
func (e *WideEvent) SetAccount(accountCode string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.AccountID = accountCode
}

// SetAsset records the asset/currency code involved.
func (e *WideEvent) SetAsset(assetCode string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.AssetCode = assetCode
}

// SetLineCounts records the debit/credit line counts of a posted entry.
func (e *WideEvent) SetLineCounts(debit, credit int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DebitLines = debit
	e.CreditLines = credit
	e.LineCount = debit + credit
}

// SetUser records the caller identity, when one is available.
func (e *WideEvent) SetUser(userID, role, authMethod string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.UserID = userID
	e.UserRole = role
	e.AuthMethod = authMethod
}

// SetService records the identity of the running process.
func (e *WideEvent) SetService(service, version, environment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Service = service
	e.Version = version
	e.Environment = environment
}

// SetError records a failure outcome, sanitizing the message before storage.
func (e *WideEvent) SetError(errType, code, message string, retryable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ErrorOccurred = true
	e.ErrorType = errType
	e.ErrorCode = code
	e.ErrorMessage = sanitizeErrorMessage(message)
	e.ErrorRetryable = retryable
}

// SetDBMetrics sets absolute database call counters.
func (e *WideEvent) SetDBMetrics(count int, timeMS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DBQueryCount = count
	e.DBQueryTimeMS = timeMS
}

// IncrementDBMetrics adds to the running database call counters.
func (e *WideEvent) IncrementDBMetrics(count int, timeMS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DBQueryCount += count
	e.DBQueryTimeMS += timeMS
}

// SetCacheMetrics sets absolute cache hit/miss counters (exchange-rate cache).
func (e *WideEvent) SetCacheMetrics(hits, misses int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CacheHits = hits
	e.CacheMisses = misses
}

func (e *WideEvent) IncrementCacheHit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CacheHits++
}

func (e *WideEvent) IncrementCacheMiss() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CacheMisses++
}

// SetExternalCallMetrics sets absolute external-call counters (exchange-rate fetches).
func (e *WideEvent) SetExternalCallMetrics(count int, timeMS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExternalCallCount = count
	e.ExternalCallTimeMS = timeMS
}

func (e *WideEvent) IncrementExternalCallMetrics(count int, timeMS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExternalCallCount += count
	e.ExternalCallTimeMS += timeMS
}

// SetIdempotency records a hashed idempotency key and whether it was a replay hit.
func (e *WideEvent) SetIdempotency(key string, hit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.IdempotencyKey = hashIdempotencyKey(key)
	e.IdempotencyHit = hit
}

// SetCustom adds a bounded free-form field, dropping additions past
// maxCustomKeys and truncating oversized keys/values.
func (e *WideEvent) SetCustom(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Custom == nil {
		e.Custom = make(map[string]any)
	}

	if _, exists := e.Custom[key]; !exists && len(e.Custom) >= maxCustomKeys {
		return
	}

	if len(key) > maxCustomKeyLen {
		key = key[:maxCustomKeyLen]
	}

	if s, ok := value.(string); ok && len(s) > maxCustomValueLen {
		value = s[:maxCustomValueLen]
	}

	e.Custom[key] = value
}

func outcomeForStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode >= 300 && statusCode < 400:
		return "redirect"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500 && statusCode < 600:
		return "server_error"
	default:
		return "unknown"
	}
}

// SetResponse records the terminal outcome of the call. It never overwrites
// a panic outcome recorded earlier by SetPanic.
func (e *WideEvent) SetResponse(statusCode int, responseSize int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.StatusCode = statusCode
	e.ResponseSize = responseSize

	if e.Outcome != "panic" {
		e.Outcome = outcomeForStatus(statusCode)
	}

	if e.DurationMS == 0 && !e.StartTime.IsZero() {
		e.DurationMS = float64(time.Since(e.StartTime).Milliseconds())
	}
}

// SetPanic records a recovered panic as the call's outcome.
func (e *WideEvent) SetPanic(recovered string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Outcome = "panic"
	e.ErrorOccurred = true
	e.ErrorType = "panic"
	e.ErrorMessage = sanitizeErrorMessage(recovered)
}

// Finalize computes DurationMS from StartTime if it has not already been set.
func (e *WideEvent) Finalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalizeLocked()
}

func (e *WideEvent) finalizeLocked() {
	if e.DurationMS == 0 && !e.StartTime.IsZero() {
		e.DurationMS = float64(time.Since(e.StartTime).Milliseconds())
	}
}

func appendIfNotEmpty(fields []any, key string, value string) []any {
	if value == "" {
		return fields
	}

	return append(fields, key, value)
}

func appendIfNonZero(fields []any, key string, value int) []any {
	if value == 0 {
		return fields
	}

	return append(fields, key, value)
}

// toFieldsLocked builds the key/value pairs for the structured log line.
// Callers must hold at least a read lock.
func (e *WideEvent) toFieldsLocked() []any {
	fields := make([]any, 0, 48)

	fields = appendIfNotEmpty(fields, "request_id", e.RequestID)
	fields = appendIfNotEmpty(fields, "trace_id", e.TraceID)
	fields = appendIfNotEmpty(fields, "span_id", e.SpanID)
	fields = appendIfNotEmpty(fields, "method", e.Method)
	fields = appendIfNotEmpty(fields, "path", e.Path)
	fields = appendIfNotEmpty(fields, "route", e.Route)

	fields = append(fields, "status_code", e.StatusCode)
	fields = appendIfNonZero(fields, "response_size", int(e.ResponseSize))
	fields = append(fields, "duration_ms", e.DurationMS)
	fields = appendIfNotEmpty(fields, "outcome", e.Outcome)
	fields = appendIfNotEmpty(fields, "service", e.Service)
	fields = appendIfNotEmpty(fields, "version", e.Version)
	fields = appendIfNotEmpty(fields, "environment", e.Environment)

	fields = appendIfNotEmpty(fields, "organization_id", e.TenantID)
	fields = appendIfNotEmpty(fields, "ledger_id", e.LedgerStreamID)
	fields = appendIfNotEmpty(fields, "transaction_id", e.JournalEntryID)
	fields = appendIfNotEmpty(fields, "transaction_type", e.JournalEntryTyp)
	fields = appendIfNotEmpty(fields, "transaction_amount", e.EntryAmount)
	fields = appendIfNotEmpty(fields, "transaction_currency", e.EntryCurrency)
	fields = appendIfNotEmpty(fields, "account_id", e.AccountID)
	fields = appendIfNotEmpty(fields, "asset_code", e.AssetCode)

	fields = appendIfNonZero(fields, "operation_count", e.LineCount)
	fields = appendIfNonZero(fields, "source_count", e.DebitLines)
	fields = appendIfNonZero(fields, "destination_count", e.CreditLines)

	fields = appendIfNotEmpty(fields, "user_id", e.UserID)
	fields = appendIfNotEmpty(fields, "user_role", e.UserRole)

	if e.ErrorOccurred {
		fields = append(fields,
			"error_occurred", e.ErrorOccurred,
			"error_type", e.ErrorType,
			"error_code", e.ErrorCode,
			"error_message", e.ErrorMessage,
			"error_retryable", e.ErrorRetryable,
		)
	}

	fields = appendIfNonZero(fields, "db_query_count", e.DBQueryCount)
	if e.DBQueryTimeMS != 0 {
		fields = append(fields, "db_query_time_ms", e.DBQueryTimeMS)
	}

	fields = appendIfNonZero(fields, "cache_hits", e.CacheHits)
	fields = appendIfNonZero(fields, "cache_misses", e.CacheMisses)

	fields = appendIfNonZero(fields, "external_call_count", e.ExternalCallCount)
	if e.ExternalCallTimeMS != 0 {
		fields = append(fields, "external_call_time_ms", e.ExternalCallTimeMS)
	}

	fields = appendIfNotEmpty(fields, "idempotency_key", e.IdempotencyKey)
	if e.IdempotencyKey != "" {
		fields = append(fields, "idempotency_hit", e.IdempotencyHit)
	}

	if e.Custom != nil {
		fields = append(fields, "custom", e.Custom)
	}

	return fields
}

// Emit writes the accumulated event to logger at a level chosen by Outcome,
// exactly once. Subsequent calls are no-ops. Nil receiver and nil logger are
// both safe no-ops, since Emit is typically called from a deferred command
// wrapper that runs even when setup failed early.
func (e *WideEvent) Emit(logger libLog.Logger) {
	if e == nil || logger == nil {
		return
	}

	e.mu.Lock()
	if e.emitted {
		e.mu.Unlock()
		return
	}

	e.finalizeLocked()
	e.emitted = true
	fields := e.toFieldsLocked()
	outcome := e.Outcome
	e.mu.Unlock()

	target := logger.WithFields(fields...)

	switch outcome {
	case "server_error", "panic":
		target.Error("wide_event")
	case "client_error":
		target.Warn("wide_event")
	default:
		target.Info("wide_event")
	}
}
