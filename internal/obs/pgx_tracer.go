package obs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type pgxSpanKey struct{}

type pgxSpan struct {
	span  trace.Span
	sql   string
	start time.Time
}

// PGXTracer implements pgx.QueryTracer. Every statement gets a span; those
// slower than SlowThreshold are also logged at warn.
type PGXTracer struct {
	Logger        *zerolog.Logger
	SlowThreshold time.Duration
}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "pgx.query", trace.WithSpanKind(trace.SpanKindClient))
	stmt := truncateSQL(data.SQL)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", stmt),
	)
	if fields := strings.Fields(stmt); len(fields) > 0 {
		span.SetAttributes(attribute.String("db.operation", strings.ToUpper(fields[0])))
	}
	return context.WithValue(ctx, pgxSpanKey{}, &pgxSpan{span: span, sql: stmt, start: time.Now()})
}

// TraceQueryEnd ends the span and records any error.
func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	s, ok := ctx.Value(pgxSpanKey{}).(*pgxSpan)
	if !ok {
		return
	}
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		s.span.RecordError(data.Err)
		s.span.SetStatus(codes.Error, data.Err.Error())
	}
	s.span.End()

	elapsed := time.Since(s.start)
	if t.Logger != nil && t.SlowThreshold > 0 && elapsed >= t.SlowThreshold {
		t.Logger.Warn().
			Str("statement", s.sql).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("slow query")
	}
}

func truncateSQL(sql string) string {
	trimmed := strings.Join(strings.Fields(sql), " ")
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
