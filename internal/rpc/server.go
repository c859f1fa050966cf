package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	runtimedebug "runtime/debug"
	"sync"
	"time"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
	"github.com/satishbabariya/prisma-migrate/internal/service"
)

// maxMessageSize bounds one request line. Schemas travel inline.
const maxMessageSize = 64 << 20

// Engine is the set of commands served over RPC.
type Engine interface {
	CreateMigration(ctx context.Context, input service.CreateMigrationInput) (service.CreateMigrationOutput, error)
	ApplyMigrations(ctx context.Context, input service.ApplyMigrationsInput) (service.ApplyMigrationsOutput, error)
	EvaluateDataLoss(ctx context.Context, input service.EvaluateDataLossInput) (service.EvaluateDataLossOutput, error)
	DiagnoseMigrationHistory(ctx context.Context, input service.DiagnoseMigrationHistoryInput) (service.DiagnoseMigrationHistoryOutput, error)
	MarkMigrationApplied(ctx context.Context, input service.MarkMigrationAppliedInput) (service.EmptyOutput, error)
	MarkMigrationRolledBack(ctx context.Context, input service.MarkMigrationRolledBackInput) (service.EmptyOutput, error)
	SchemaPush(ctx context.Context, input service.SchemaPushInput) (service.SchemaPushOutput, error)
	DevDiagnostic(ctx context.Context, input service.DevDiagnosticInput) (service.DevDiagnosticOutput, error)
	ListMigrationDirectories(ctx context.Context, input service.ListMigrationDirectoriesInput) (service.ListMigrationDirectoriesOutput, error)
	Reset(ctx context.Context) error
	GetDatabaseVersion(ctx context.Context) (string, error)
	EnsureConnectionValidity(ctx context.Context) error
	DebugPanic()
}

// Ensure MigrationService implements Engine interface.
var _ Engine = (*service.MigrationService)(nil)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server dispatches requests to an Engine. Requests are handled one at a
// time, in arrival order.
type Server struct {
	telemetry telemetry.Telemetry
	handlers  map[string]handlerFunc

	mu sync.Mutex
}

// NewServer creates a server for engine.
func NewServer(engine Engine, tel telemetry.Telemetry) *Server {
	if tel == nil {
		tel = telemetry.NewNoopTelemetry()
	}
	empty := func(fn func(context.Context) error) handlerFunc {
		return func(ctx context.Context, _ json.RawMessage) (any, error) {
			return service.EmptyOutput{}, fn(ctx)
		}
	}
	return &Server{
		telemetry: tel,
		handlers: map[string]handlerFunc{
			"createMigration":          method(engine.CreateMigration),
			"applyMigrations":          method(engine.ApplyMigrations),
			"evaluateDataLoss":         method(engine.EvaluateDataLoss),
			"diagnoseMigrationHistory": method(engine.DiagnoseMigrationHistory),
			"markMigrationApplied":     method(engine.MarkMigrationApplied),
			"markMigrationRolledBack":  method(engine.MarkMigrationRolledBack),
			"schemaPush":               method(engine.SchemaPush),
			"devDiagnostic":            method(engine.DevDiagnostic),
			"listMigrationDirectories": method(engine.ListMigrationDirectories),
			"reset":                    empty(engine.Reset),
			"ensureConnectionValidity": empty(engine.EnsureConnectionValidity),
			"getDatabaseVersion": func(ctx context.Context, _ json.RawMessage) (any, error) {
				return engine.GetDatabaseVersion(ctx)
			},
			"debugPanic": func(context.Context, json.RawMessage) (any, error) {
				engine.DebugPanic()
				return nil, nil
			},
		},
	}
}

func method[I, O any](fn func(context.Context, I) (O, error)) handlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var input I
		if len(params) > 0 && !bytes.Equal(params, jsonNull) {
			if err := json.Unmarshal(params, &input); err != nil {
				return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
			}
		}
		return fn(ctx, input)
	}
}

// Serve reads one request per line from r and writes one response per line
// to w. It returns nil at the end of r.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.Handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

// Handle processes a single encoded request. It returns nil for
// notifications.
func (s *Server) Handle(ctx context.Context, data []byte) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(jsonNull, &Error{Code: ParseError, Message: "Parse error"})
	}
	id := req.ID
	if len(id) == 0 {
		id = jsonNull
	}
	if req.JSONRPC != Version || req.Method == "" {
		return errorResponse(id, &Error{Code: InvalidRequest, Message: "Invalid request"})
	}

	result, err := s.call(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return errorResponse(id, toRPCError(err))
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, toRPCError(fmt.Errorf("failed to encode result: %w", err)))
	}
	return &Response{JSONRPC: Version, Result: encoded, ID: id}
}

func (s *Server) call(ctx context.Context, req *Request) (result any, err error) {
	handler, ok := s.handlers[req.Method]
	if !ok {
		return nil, &Error{Code: MethodNotFound, Message: "Method not found: " + req.Method}
	}

	start := time.Now()
	log := debug.With("method", req.Method)
	log.Debug("handling request")
	defer func() {
		if r := recover(); r != nil {
			stack := string(runtimedebug.Stack())
			log.Error("command panicked", "panic", r, "stack", stack)
			err = &panicError{value: r, stack: stack}
		}
		s.telemetry.RecordCommand(ctx, telemetry.CommandInfo{
			Method:    req.Method,
			Duration:  time.Since(start),
			ErrorCode: errorCode(err),
		})
		if err != nil {
			log.Warn("command failed", "error", err)
		}
	}()
	return handler(ctx, req.Params)
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if known, ok := domain.AsKnownError(err); ok {
		return known.Code
	}
	var p *panicError
	if errors.As(err, &p) {
		return "panic"
	}
	return "unknown"
}

func toRPCError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	data := &ErrorData{Message: err.Error()}
	var p *panicError
	switch known, ok := domain.AsKnownError(err); {
	case ok:
		data.Message = known.Message
		data.Meta = known.Meta
		data.ErrorCode = known.Code
	case errors.As(err, &p):
		data.IsPanic = true
		data.Meta = map[string]any{"backtrace": p.stack}
	}
	return &Error{Code: EngineErrorCode, Message: "An error happened. Check the data field for details.", Data: data}
}

func errorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, Error: err, ID: id}
}
