package repo

import (
	"context"
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/utils"
)

const (
	// FaultsFile is the fault table inside a fixture directory.
	FaultsFile = "network_faults.csv"
	// ProceduresDir holds one JSON document per procedure.
	ProceduresDir = "sop"
)

//go:embed fixtures/network_faults.csv fixtures/sop/*.json
var builtinFixtures embed.FS

// BuiltinFixtures exposes the bundled demo fixtures.
func BuiltinFixtures() fs.FS {
	sub, err := fs.Sub(builtinFixtures, "fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}

// FixtureStore reads the CSV fault table and JSON procedure documents.
type FixtureStore struct {
	fsys   fs.FS
	name   string
	logger *slog.Logger
}

// NewFixtureStore reads fixtures from fsys.
func NewFixtureStore(fsys fs.FS, name string, logger *slog.Logger) *FixtureStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixtureStore{fsys: fsys, name: name, logger: logger}
}

// NewFixtureDirStore reads fixtures from dir, or the bundled set when dir is empty.
func NewFixtureDirStore(dir string, logger *slog.Logger) *FixtureStore {
	if dir == "" {
		return NewFixtureStore(BuiltinFixtures(), "fixtures:builtin", logger)
	}
	return NewFixtureStore(os.DirFS(dir), "fixtures:"+dir, logger)
}

// Name identifies the store in logs and metrics.
func (s *FixtureStore) Name() string { return s.name }

// LoadFaults parses the fault table. Rows that cannot be parsed are skipped
// and logged.
func (s *FixtureStore) LoadFaults(ctx context.Context) ([]models.FaultRecord, error) {
	f, err := s.fsys.Open(FaultsFile)
	if err != nil {
		return nil, utils.NewAppError("load faults", "fault fixture unavailable", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, utils.NewAppError("load faults", "fault fixture has no header", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"fault_id", "fault_timestamp"} {
		if _, ok := index[required]; !ok {
			return nil, utils.NewAppError("load faults", "fault fixture missing column "+required, nil)
		}
	}

	var faults []models.FaultRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, utils.NewAppError("load faults", "fault fixture unreadable", err)
		}
		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		fault, err := faultFromColumns(get)
		if err != nil {
			s.logger.Warn("skipping fault row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		faults = append(faults, fault)
	}
	return faults, nil
}

// LoadProcedures decodes every sop/*.json document in name order. A missing
// directory yields no documents.
func (s *FixtureStore) LoadProcedures(ctx context.Context) ([]models.ProcedureDocument, error) {
	matches, err := fs.Glob(s.fsys, path.Join(ProceduresDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	docs := make([]models.ProcedureDocument, 0, len(matches))
	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(s.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read procedure %s: %w", name, err)
		}
		var doc models.ProcedureDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("skipping procedure document", slog.String("file", name), slog.Any("error", err))
			continue
		}
		doc.Category = models.ParseCategory(string(doc.Category))
		docs = append(docs, doc)
	}
	return docs, nil
}

// faultFromColumns builds a record from named column values. Only the
// identifier and occurrence time are mandatory.
func faultFromColumns(get func(string) string) (models.FaultRecord, error) {
	id := get("fault_id")
	if id == "" {
		return models.FaultRecord{}, errors.New("missing fault_id")
	}
	occurred, err := utils.ParseTimestamp(get("fault_timestamp"))
	if err != nil {
		return models.FaultRecord{}, fmt.Errorf("fault %s: %w", id, err)
	}

	fault := models.FaultRecord{
		ID:                id,
		Timestamp:         occurred,
		Code:              get("fault_code"),
		Description:       get("fault_description"),
		Category:          models.ParseCategory(get("fault_category")),
		NetworkType:       get("network_type"),
		EquipmentType:     get("equipment_type"),
		Location:          get("location"),
		Severity:          get("severity"),
		CustomerImpact:    get("customer_impact"),
		CustomersAffected: parseInt(get("customers_affected")),
		ServiceCalls:      parseInt(get("service_calls_generated")),
		ResolutionHours:   parseFloat(get("resolution_time_hours")),
		FirstTimeFix:      parseBool(get("first_time_fix")),
		TechnicianType:    get("technician_type_required"),
		RevenueImpact:     parseFloat(get("estimated_revenue_impact")),
		PriorityScore:     parseFloat(get("priority_score")),
	}
	if v := get("predicted_category"); v != "" {
		fault.PredictedCategory = models.ParseCategory(v)
	}
	if v := get("calculated_priority_score"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			fault.CalculatedPriority = &p
		}
	}
	if v := get("resolution_timestamp"); v != "" {
		resolvedAt, err := utils.ParseTimestamp(v)
		if err != nil {
			return models.FaultRecord{}, fmt.Errorf("fault %s resolution: %w", id, err)
		}
		_ = fault.Resolve(resolvedAt)
	}
	fault.ApplyDefaults()
	return fault, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(v string) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return int(parseFloat(v))
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
