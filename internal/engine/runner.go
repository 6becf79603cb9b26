package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"db-relay/internal/convert"
	"db-relay/internal/dialect"
	"db-relay/internal/metrics"
	"db-relay/internal/model"
	"db-relay/internal/params"

	"github.com/sirupsen/logrus"
)

const (
	DefaultReadTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 5 * time.Minute

	MsgNoData = "No data found in source query"
)

var defaultConverter = convert.New(nil)

// Request describes one transfer. Dialects are database type tags such as "PostgreSQL".
type Request struct {
	Integration string // used for logs and metrics only

	SourceDialect    string
	SourceConnString string
	SourceQuery      string

	TargetDialect    string
	TargetConnString string
	TargetQuery      string

	Mappings []model.Mapping
}

// Runner moves every row of a source query through a target statement inside
// one target transaction.
type Runner struct {
	Connector    dialect.Connector
	Converter    *convert.Engine
	Log          logrus.FieldLogger
	Metrics      *metrics.Collector
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewRunner(conn dialect.Connector, conv *convert.Engine, log logrus.FieldLogger) *Runner {
	if conv == nil {
		conv = convert.New(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		Connector:    conn,
		Converter:    conv,
		Log:          log,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Run never returns an error or panics; failures are reported in the result.
func (r *Runner) Run(ctx context.Context, req Request) (res model.RunResult) {
	start := time.Now()
	log := r.logger().WithField("integration", req.Integration)

	defer func() {
		if p := recover(); p != nil {
			res = model.RunResult{Error: fmt.Sprintf("panic: %v", p)}
		}
		res.DurationMs = time.Since(start).Milliseconds()
		fields := logrus.Fields{"elapsed_ms": res.DurationMs, "rows": res.RowsAffected}
		if res.Success {
			log.WithFields(fields).Info("integration run finished")
		} else {
			log.WithFields(fields).WithField("error", res.Error).Error("integration run failed")
		}
		r.Metrics.ObserveRun(req.Integration, res)
	}()

	src, err := dialect.Resolve(req.SourceDialect)
	if err != nil {
		return model.RunResult{Error: err.Error()}
	}
	dst, err := dialect.Resolve(req.TargetDialect)
	if err != nil {
		return model.RunResult{Error: err.Error()}
	}

	rows, err := r.readSource(ctx, src, req)
	if err != nil {
		return model.RunResult{Error: err.Error()}
	}
	if len(rows) == 0 {
		return model.RunResult{Success: true, Message: MsgNoData}
	}
	log.WithField("rows", len(rows)).Debug("source rows loaded")

	n, err := r.writeTarget(ctx, src, dst, req, rows, log)
	if err != nil {
		return model.RunResult{Error: err.Error()}
	}
	return model.RunResult{Success: true, RowsAffected: n}
}

// readSource materialises the full source result set and closes the source connection.
func (r *Runner) readSource(ctx context.Context, a dialect.Adapter, req Request) ([]model.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOr(r.ReadTimeout, DefaultReadTimeout))
	defer cancel()

	db, err := r.connector().Open(ctx, a.Dialect(), req.SourceConnString)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, req.SourceQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types := make([]string, len(cols))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			if i < len(types) {
				types[i] = ct.DatabaseTypeName()
			}
		}
	}

	var out []model.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = convert.Normalize(vals[i], types[i], a.Dialect())
		}
		out = append(out, model.Row{Columns: cols, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) writeTarget(ctx context.Context, src, dst dialect.Adapter, req Request, rows []model.Row, log logrus.FieldLogger) (int64, error) {
	openCtx, cancel := context.WithTimeout(ctx, timeoutOr(r.WriteTimeout, DefaultWriteTimeout))
	db, err := r.connector().Open(openCtx, dst.Dialect(), req.TargetConnString)
	cancel()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.WithError(err).Warn("rollback failed")
		}
	}()

	placeholders := params.ExtractParameters(req.TargetQuery)
	binding := dst.Bind(req.TargetQuery)
	mapping := model.MappingIndex(req.Mappings)
	warned := make(map[string]bool)

	var total int64
	for _, row := range rows {
		values := make(map[string]any, len(placeholders))
		for _, p := range placeholders {
			v, ok := resolve(row, p, mapping)
			if !ok {
				if !warned[p] {
					warned[p] = true
					log.WithField("parameter", p).Warn("no source column found for placeholder; binding NULL")
				}
				r.Metrics.UnmappedPlaceholder()
				values[p] = nil
				continue
			}
			cv, err := r.converter().Coerce(v, src.Dialect(), dst.Dialect())
			if err != nil {
				log.WithField("parameter", p).WithError(err).Warn("conversion failed; binding original value")
				r.Metrics.ConversionFallback()
				cv = v
			}
			values[p] = cv
		}

		execCtx, cancel := context.WithTimeout(ctx, timeoutOr(r.WriteTimeout, DefaultWriteTimeout))
		result, err := tx.ExecContext(execCtx, binding.SQL, binding.Args(values)...)
		cancel()
		if err != nil {
			return 0, err
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return total, nil
}

// resolve picks the value for placeholder p: explicit mapping first, then a
// case-insensitive column match on the placeholder name.
func resolve(row model.Row, p string, mapping map[string]string) (any, bool) {
	if col, ok := mapping[p]; ok && col != "" {
		if v, ok := row.Lookup(col); ok {
			return v, true
		}
		if v, ok := row.LookupFold(col); ok {
			return v, true
		}
	}
	return row.LookupFold(p)
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Runner) converter() *convert.Engine {
	if r.Converter == nil {
		return defaultConverter
	}
	return r.Converter
}

func (r *Runner) connector() dialect.Connector {
	if r.Connector == nil {
		return dialect.DriverConnector{}
	}
	return r.Connector
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

var _ Executor = (*Runner)(nil)
