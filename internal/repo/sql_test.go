package repo

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/utils"
)

func newMockStore(t *testing.T, tables Tables, limit uint64) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewSQLStore(db, DriverPostgres, tables, limit, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, mock
}

func TestSQLStoreLoadFaults(t *testing.T) {
	store, mock := newMockStore(t, Tables{Faults: "analytics.network_faults"}, 500)

	rows := sqlmock.NewRows(faultColumns).
		AddRow("F9", "2024-06-05T08:00:00Z", "812.3", "Fiber cut", "Cable Fault", "FIBER", "Cisco ASR9000",
			"Aarhus", "High", "Severe", 120, 30, nil, 6.5, "false", nil, 4200.5, 0.91).
		AddRow("F8", "broken", "100.1", "", "Minor", nil, nil, nil, nil, nil, 1, 0, nil, 1, "true", nil, 10, 0.1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM analytics.network_faults ORDER BY fault_timestamp DESC LIMIT 500")).
		WillReturnRows(rows)

	faults, err := store.LoadFaults(context.Background())
	if err != nil {
		t.Fatalf("load faults: %v", err)
	}
	if len(faults) != 1 {
		t.Fatalf("expected the unparseable row to be skipped, got %d faults", len(faults))
	}
	got := faults[0]
	if got.Category != models.CategoryCableFault || got.CustomersAffected != 120 || got.RevenueImpact != 4200.5 {
		t.Fatalf("unexpected fault %+v", got)
	}
	if got.TechnicianType != models.TechnicianSpecialist || got.IsResolved() {
		t.Fatalf("expected defaults on unresolved cable fault, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStoreLoadFaultsError(t *testing.T) {
	store, mock := newMockStore(t, Tables{Faults: "faults"}, 0)
	mock.ExpectQuery("FROM faults ORDER BY fault_timestamp DESC$").WillReturnError(errors.New("relation does not exist"))

	if _, err := store.LoadFaults(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSQLStoreTriageAndProcedures(t *testing.T) {
	store, mock := newMockStore(t, Tables{Faults: "faults", Triage: "triage", Procedures: "sop_documents"}, 0)

	mock.ExpectQuery("SELECT fault_id, predicted_category, calculated_priority_score FROM triage").
		WillReturnRows(sqlmock.NewRows(triageColumns).
			AddRow("F1", "cable_fault", 0.95).
			AddRow("F2", nil, nil))
	mock.ExpectQuery("FROM sop_documents ORDER BY document_id").
		WillReturnRows(sqlmock.NewRows(procedureColumns).
			AddRow("SOP-010", "Amplifier swap", "Major", `{"Arris E6000","Cisco cBR-8"}`, `["300.1"]`, "1. Swap amplifier"))

	scores, err := store.LoadTriage(context.Background())
	if err != nil {
		t.Fatalf("load triage: %v", err)
	}
	if scores["F1"].PredictedCategory != models.CategoryCableFault || *scores["F1"].CalculatedPriority != 0.95 {
		t.Fatalf("unexpected F1 score %+v", scores["F1"])
	}
	if scores["F2"].CalculatedPriority != nil {
		t.Fatalf("expected nil priority for F2")
	}

	docs, err := store.LoadProcedures(context.Background())
	if err != nil {
		t.Fatalf("load procedures: %v", err)
	}
	if len(docs) != 1 || len(docs[0].EquipmentTypes) != 2 || docs[0].FaultCodes[0] != "300.1" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStoreOptionalTablesUnconfigured(t *testing.T) {
	store, _ := newMockStore(t, Tables{Faults: "faults"}, 0)
	if _, err := store.LoadTriage(context.Background()); err == nil {
		t.Fatalf("expected triage error without a table")
	}
	if _, err := store.LoadProcedures(context.Background()); err == nil {
		t.Fatalf("expected procedure error without a table")
	}
}

func TestNewSQLStoreRejectsBadIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	if _, err := NewSQLStore(db, DriverSQLite, Tables{Faults: "faults; DROP TABLE x"}, 0, 0, nil); err == nil {
		t.Fatalf("expected identifier validation error")
	}
	if _, err := NewSQLStore(db, DriverSQLite, Tables{}, 0, 0, nil); err == nil {
		t.Fatalf("expected missing fault table error")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := PingDB(ctx, db, time.Second); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}

	ddl := `CREATE TABLE faults (
		fault_id TEXT, fault_timestamp TEXT, fault_code TEXT, fault_description TEXT, fault_category TEXT,
		network_type TEXT, equipment_type TEXT, location TEXT, severity TEXT, customer_impact TEXT,
		customers_affected INTEGER, service_calls_generated INTEGER, resolution_timestamp TEXT,
		resolution_time_hours REAL, first_time_fix INTEGER, technician_type_required TEXT,
		estimated_revenue_impact REAL, priority_score REAL)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		t.Fatalf("create table: %v", err)
	}
	insert := `INSERT INTO faults VALUES (?, ?, '500.3', 'Signal level deviation', 'Minor', 'COAX', 'Arris E6000',
		'Odense', 'Low', 'Minimal', 5, 4, ?, 2.5, 1, 'General', 88.5, ?)`
	if _, err := db.ExecContext(ctx, insert, "F1", "2024-06-01T10:00:00", "2024-06-01T12:30:00", 0.2); err != nil {
		t.Fatalf("insert F1: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "F2", "2024-06-02T10:00:00", nil, 0.4); err != nil {
		t.Fatalf("insert F2: %v", err)
	}

	store, err := NewSQLStore(db, DriverSQLite, Tables{Faults: "faults"}, 0, 0, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	faults, err := store.LoadFaults(ctx)
	if err != nil {
		t.Fatalf("load faults: %v", err)
	}
	if len(faults) != 2 || faults[0].ID != "F2" {
		t.Fatalf("expected newest first, got %+v", faults)
	}
	if faults[0].IsResolved() || !faults[1].IsResolved() {
		t.Fatalf("unexpected resolution state")
	}
	if !faults[1].FirstTimeFix || faults[1].RevenueImpact != 88.5 {
		t.Fatalf("unexpected F1 %+v", faults[1])
	}
}

func TestUnreachableWarehouseDegradesPerQuery(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(DriverSQLite, filepath.Join(t.TempDir(), "missing", "warehouse.db"))
	if err != nil {
		t.Fatalf("open should not connect: %v", err)
	}
	defer db.Close()

	err = PingDB(ctx, db, time.Second)
	if err == nil {
		t.Fatalf("expected ping failure")
	}
	if msg := utils.UserMessage(err); msg != "warehouse unreachable" {
		t.Fatalf("unexpected ping message %q", msg)
	}

	store, err := NewSQLStore(db, DriverSQLite, Tables{Faults: "faults"}, 0, time.Second, nil)
	if err != nil {
		t.Fatalf("store over an unreachable warehouse: %v", err)
	}
	if _, err := store.LoadFaults(ctx); err == nil || utils.UserMessage(err) != "fault table unavailable" {
		t.Fatalf("expected fault table unavailable, got %v", err)
	}
}
