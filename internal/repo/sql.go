package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/utils"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var faultColumns = []string{
	"fault_id", "fault_timestamp", "fault_code", "fault_description", "fault_category",
	"network_type", "equipment_type", "location", "severity", "customer_impact",
	"customers_affected", "service_calls_generated", "resolution_timestamp",
	"resolution_time_hours", "first_time_fix", "technician_type_required",
	"estimated_revenue_impact", "priority_score",
}

var procedureColumns = []string{"document_id", "title", "category", "equipment_types", "fault_codes", "content"}

var triageColumns = []string{"fault_id", "predicted_category", "calculated_priority_score"}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Tables names the warehouse relations. Triage and Procedures are optional.
type Tables struct {
	Faults     string
	Triage     string
	Procedures string
}

// SQLStore reads the warehouse through database/sql.
type SQLStore struct {
	db       *sql.DB
	driver   string
	tables   Tables
	rowLimit uint64
	timeout  time.Duration
	builder  sq.StatementBuilderType
	logger   *slog.Logger
}

// OpenDB prepares a warehouse handle. Connections are made lazily, so an
// unreachable warehouse surfaces on the first query rather than here.
func OpenDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// PingDB checks the warehouse is reachable within timeout.
func PingDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return utils.NewAppError("ping warehouse", "warehouse unreachable", err)
	}
	return nil
}

// NewSQLStore validates table identifiers and prepares the query builder.
func NewSQLStore(db *sql.DB, driver string, tables Tables, rowLimit uint64, timeout time.Duration, logger *slog.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sql store requires a database handle")
	}
	for _, name := range []string{tables.Faults, tables.Triage, tables.Procedures} {
		if name != "" && !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	if tables.Faults == "" {
		return nil, fmt.Errorf("fault table is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{
		db:       db,
		driver:   driver,
		tables:   tables,
		rowLimit: rowLimit,
		timeout:  timeout,
		builder:  builder,
		logger:   logger,
	}, nil
}

// Name identifies the store in logs and metrics.
func (s *SQLStore) Name() string { return "sql:" + s.driver }

// LoadFaults reads the fault table, newest first.
func (s *SQLStore) LoadFaults(ctx context.Context) ([]models.FaultRecord, error) {
	query := s.builder.Select(faultColumns...).From(s.tables.Faults).OrderBy("fault_timestamp DESC")
	if s.rowLimit > 0 {
		query = query.Limit(s.rowLimit)
	}

	var faults []models.FaultRecord
	err := s.query(ctx, query, faultColumns, func(get func(string) string) {
		fault, err := faultFromColumns(get)
		if err != nil {
			s.logger.Warn("skipping fault row", slog.Any("error", err))
			return
		}
		faults = append(faults, fault)
	})
	if err != nil {
		return nil, utils.NewAppError("load faults", "fault table unavailable", err)
	}
	return faults, nil
}

// LoadTriage reads ML predictions keyed by fault id.
func (s *SQLStore) LoadTriage(ctx context.Context) (map[string]TriageScore, error) {
	if s.tables.Triage == "" {
		return nil, utils.NewAppError("load triage", "triage table not configured", nil)
	}
	scores := make(map[string]TriageScore)
	query := s.builder.Select(triageColumns...).From(s.tables.Triage)
	err := s.query(ctx, query, triageColumns, func(get func(string) string) {
		var score TriageScore
		if v := get("predicted_category"); v != "" {
			score.PredictedCategory = models.ParseCategory(v)
		}
		if v := get("calculated_priority_score"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				score.CalculatedPriority = &p
			}
		}
		scores[get("fault_id")] = score
	})
	if err != nil {
		return nil, utils.NewAppError("load triage", "triage table unavailable", err)
	}
	return scores, nil
}

// LoadProcedures reads the procedure metadata table.
func (s *SQLStore) LoadProcedures(ctx context.Context) ([]models.ProcedureDocument, error) {
	if s.tables.Procedures == "" {
		return nil, utils.NewAppError("load procedures", "procedure table not configured", nil)
	}
	var docs []models.ProcedureDocument
	query := s.builder.Select(procedureColumns...).From(s.tables.Procedures).OrderBy("document_id")
	err := s.query(ctx, query, procedureColumns, func(get func(string) string) {
		docs = append(docs, models.ProcedureDocument{
			ID:             get("document_id"),
			Title:          get("title"),
			Category:       models.ParseCategory(get("category")),
			EquipmentTypes: parseList(get("equipment_types")),
			FaultCodes:     parseList(get("fault_codes")),
			Content:        get("content"),
		})
	})
	if err != nil {
		return nil, utils.NewAppError("load procedures", "procedure table unavailable", err)
	}
	return docs, nil
}

// query runs a select and hands every row to fn as named text values.
// Every column is scanned as text so drivers can disagree on types.
func (s *SQLStore) query(ctx context.Context, q sq.SelectBuilder, columns []string, fn func(get func(string) string)) error {
	width := len(columns)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	stmt, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	s.logger.Debug("warehouse query", slog.String("sql", stmt))

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	index := make(map[string]int, width)
	for i, col := range columns {
		index[strings.ToLower(col)] = i
	}
	values := make([]sql.NullString, width)
	ptrs := make([]any, width)
	for i := range values {
		ptrs[i] = &values[i]
	}
	get := func(col string) string {
		if i, ok := index[col]; ok {
			return strings.TrimSpace(values[i].String)
		}
		return ""
	}
	for rows.Next() {
		for i := range values {
			values[i] = sql.NullString{}
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		fn(get)
	}
	return rows.Err()
}
