package domain

import (
	"testing"
)

func TestNewContingencyTable(t *testing.T) {
	tests := []struct {
		name         string
		pairCount    int64
		drugTotal    int64
		eventTotal   int64
		totalReports int64
		wantA        int64
		wantB        int64
		wantC        int64
		wantD        int64
		wantErr      bool
	}{
		{
			name:      "typical table",
			pairCount: 10, drugTotal: 100, eventTotal: 60, totalReports: 10000,
			wantA: 10, wantB: 90, wantC: 50, wantD: 9850,
		},
		{
			name:      "pair equals drug total",
			pairCount: 5, drugTotal: 5, eventTotal: 25, totalReports: 1000,
			wantA: 5, wantB: 0, wantC: 20, wantD: 975,
		},
		{
			name:      "zero pair count",
			pairCount: 0, drugTotal: 50, eventTotal: 30, totalReports: 500,
			wantA: 0, wantB: 50, wantC: 30, wantD: 420,
		},
		{
			name:      "pair count exceeds drug total",
			pairCount: 20, drugTotal: 10, eventTotal: 60, totalReports: 1000,
			wantErr: true,
		},
		{
			name:      "totals exceed population",
			pairCount: 1, drugTotal: 800, eventTotal: 900, totalReports: 1000,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewContingencyTable("DRUG X", "NAUSEA",
				tt.pairCount, tt.drugTotal, tt.eventTotal, tt.totalReports)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got table %+v", table)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if table.A != tt.wantA || table.B != tt.wantB || table.C != tt.wantC || table.D != tt.wantD {
				t.Errorf("Expected cells (%d, %d, %d, %d), got (%d, %d, %d, %d)",
					tt.wantA, tt.wantB, tt.wantC, tt.wantD,
					table.A, table.B, table.C, table.D)
			}
		})
	}
}

func TestContingencyTableCellSumInvariant(t *testing.T) {
	table, err := NewContingencyTable("DRUG X", "NAUSEA", 12, 100, 80, 10000)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := table.A + table.B + table.C + table.D; got != 10000 {
		t.Errorf("Expected cells to sum to 10000, got %d", got)
	}
	if table.DrugTotal() != 100 {
		t.Errorf("Expected drug total 100, got %d", table.DrugTotal())
	}
	if table.EventTotal() != 80 {
		t.Errorf("Expected event total 80, got %d", table.EventTotal())
	}
	if table.TotalReports() != 10000 {
		t.Errorf("Expected total reports 10000, got %d", table.TotalReports())
	}
}

func TestContingencyTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   ContingencyTable
		total   int64
		wantErr bool
	}{
		{
			name:  "valid table",
			table: ContingencyTable{A: 1, B: 2, C: 3, D: 4},
			total: 10,
		},
		{
			name:    "negative cell",
			table:   ContingencyTable{A: 1, B: -2, C: 3, D: 4},
			total:   6,
			wantErr: true,
		},
		{
			name:    "cell sum mismatch",
			table:   ContingencyTable{A: 1, B: 2, C: 3, D: 4},
			total:   11,
			wantErr: true,
		},
		{
			name:  "unknown population skips sum check",
			table: ContingencyTable{A: 1, B: 2, C: 3, D: 4},
			total: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate(tt.total)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
