package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type stubLoader struct {
	ds    models.Dataset
	err   error
	calls int
}

func (s *stubLoader) Load(context.Context) (models.Dataset, error) {
	s.calls++
	return s.ds, s.err
}

type stubSearcher struct {
	results []models.SearchResult
	err     error
	queries []repo.SearchQuery
}

func (s *stubSearcher) Backend() string { return "stub" }

func (s *stubSearcher) Search(_ context.Context, q repo.SearchQuery) ([]models.SearchResult, error) {
	s.queries = append(s.queries, q)
	return s.results, s.err
}

func fault(id string, category models.Category, location string, hoursAgo, priority float64, customers int) models.FaultRecord {
	f := models.FaultRecord{
		ID:                id,
		Timestamp:         testNow.Add(-time.Duration(hoursAgo * float64(time.Hour))),
		Code:              "100.1",
		Description:       "fault " + id,
		Category:          category,
		EquipmentType:     "Casa C100G",
		Location:          location,
		CustomersAffected: customers,
		RevenueImpact:     float64(customers) * 10,
		PriorityScore:     priority,
	}
	f.ApplyDefaults()
	return f
}

func closedFault(f models.FaultRecord) models.FaultRecord {
	if err := f.Resolve(f.Timestamp.Add(time.Hour)); err != nil {
		panic(fmt.Sprintf("resolve %s: %v", f.ID, err))
	}
	return f
}

func sampleDataset() models.Dataset {
	return models.Dataset{
		Faults: []models.FaultRecord{
			fault("F1", models.CategoryCableFault, "Aarhus", 6, 0.9, 500),
			fault("F2", models.CategoryMinor, "Odense", 0.5, 0.2, 10),
			closedFault(fault("F3", models.CategoryMajor, "Aarhus", 30, 0.7, 80)),
			fault("F4", models.CategoryMajor, "Odense", 3, 0.65, 120),
			fault("F5", models.CategoryMinor, "Aalborg", 24*20, 0.3, 5),
		},
		Procedures: []models.ProcedureDocument{
			{ID: "SOP-003", Title: "Signal Level Adjustment", Category: models.CategoryMinor, FaultCodes: []string{"100.1"}, Content: "1. Check levels"},
		},
		Source: "stub",
	}
}

var errBoom = errors.New("boom")

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
