package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"querynerd/internal/pipeline"
)

// AuditEventType names an audit line.
type AuditEventType string

const (
	AuditRunStart     AuditEventType = "run_start"
	AuditRunComplete  AuditEventType = "run_complete"
	AuditNodeComplete AuditEventType = "node_complete"
	AuditNodeError    AuditEventType = "node_error"
)

var (
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger mirrors pipeline step log entries to a JSON-lines file, one
// line per entry. It implements pipeline.AuditSink.
type AuditLogger struct {
	logger *zap.Logger
	close  func()
}

// InitAudit opens the audit log. It is a no-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		return nil // Already initialized
	}

	mu.RLock()
	dir := opts.Dir
	mu.RUnlock()

	file, err := openDated(dir, "audit")
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.MessageKey = "event"
	cfg.LevelKey = ""
	cfg.CallerKey = ""
	cfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(file), zapcore.DebugLevel)

	l := zap.New(core)
	auditLogger = &AuditLogger{
		logger: l,
		close: func() {
			_ = l.Sync()
			file.Close()
		},
	}
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil && auditLogger.close != nil {
		auditLogger.close()
	}
	auditLogger = nil
}

// Audit returns the global audit logger, a no-op one when the audit log
// is not open.
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		return &AuditLogger{logger: zap.NewNop()}
	}
	return auditLogger
}

// Record writes one step log entry.
func (a *AuditLogger) Record(runID string, e pipeline.AuditEntry) {
	if a == nil || a.logger == nil {
		return
	}
	event := AuditNodeComplete
	fields := []zap.Field{
		zap.String("run", runID),
		zap.String("node", e.Node),
		zap.Bool("success", e.Success),
		zap.Int64("dur_ms", e.DurationMs),
		zap.Any("input", e.Input),
	}
	if e.Success {
		fields = append(fields, zap.Any("output", e.Output))
	} else {
		event = AuditNodeError
		fields = append(fields, zap.String("error", e.Error))
	}
	a.logger.Info(string(event), fields...)
}

// RunStarted marks the beginning of a run.
func (a *AuditLogger) RunStarted(runID, query string) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Info(string(AuditRunStart), zap.String("run", runID), zap.String("query", query))
}

// RunCompleted marks the end of a run.
func (a *AuditLogger) RunCompleted(runID string, state pipeline.State) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Info(string(AuditRunComplete),
		zap.String("run", runID),
		zap.String("task", string(state.Task)),
		zap.Int("steps", len(state.StepLog)),
		zap.Bool("degraded", state.Degraded()))
}
