package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DumpInfo flattens an error chain for structured logging.
type DumpInfo struct {
	Code       string
	TopMessage string
	Chain      []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGColumn     string
	PGDetail     string
	PGMessage    string
}

// Dump walks the wrapped chain so log lines keep the full causal path.
// Postgres driver errors are unpacked so constraint failures are
// diagnosable from a single log line.
func Dump(err error) DumpInfo {
	info := DumpInfo{}
	if err == nil {
		return info
	}
	info.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		info.Code = string(typed.Code())
	}
	for current := err; current != nil; current = stdErrors.Unwrap(current) {
		info.Chain = append(info.Chain, current.Error())
	}

	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		info.PGCode = pgxErr.Code
		info.PGConstraint = pgxErr.ConstraintName
		info.PGTable = pgxErr.TableName
		info.PGColumn = pgxErr.ColumnName
		info.PGDetail = pgxErr.Detail
		info.PGMessage = pgxErr.Message
		return info
	}

	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		info.PGCode = string(pqErr.Code)
		info.PGConstraint = pqErr.Constraint
		info.PGTable = pqErr.Table
		info.PGColumn = pqErr.Column
		info.PGDetail = pqErr.Detail
		info.PGMessage = pqErr.Message
	}
	return info
}
