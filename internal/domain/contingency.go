package domain

import (
	"errors"
	"fmt"
)

// ContingencyTable is the 2x2 count matrix underlying all disproportionality
// statistics for one substance-reaction pair. Counting is per distinct report:
// a report naming the substance or reaction multiple times contributes at most
// one to each cell.
//
//	          reaction   no reaction
//	substance     A           B
//	other         C           D
type ContingencyTable struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction"`

	A int64 `json:"a"` // reports with substance (under the role filter) and reaction
	B int64 `json:"b"` // reports with substance, without reaction
	C int64 `json:"c"` // reports with reaction, without substance
	D int64 `json:"d"` // reports with neither
}

// DrugTotal returns the number of reports naming the substance.
func (t *ContingencyTable) DrugTotal() int64 {
	return t.A + t.B
}

// EventTotal returns the number of reports listing the reaction.
func (t *ContingencyTable) EventTotal() int64 {
	return t.A + t.C
}

// TotalReports returns the size of the qualifying report population.
func (t *ContingencyTable) TotalReports() int64 {
	return t.A + t.B + t.C + t.D
}

// Validate enforces the structural invariants of a contingency table:
// all cells non-negative, and when the population total is known the four
// cells must partition it exactly.
func (t *ContingencyTable) Validate(totalReports int64) error {
	if t.A < 0 || t.B < 0 || t.C < 0 || t.D < 0 {
		return fmt.Errorf("contingency table validation: %w",
			errors.New("cells must be non-negative"))
	}

	if totalReports >= 0 && t.TotalReports() != totalReports {
		return fmt.Errorf("contingency table validation: cells sum to %d, population is %d",
			t.TotalReports(), totalReports)
	}

	return nil
}

// NewContingencyTable derives the full table from pre-aggregated counts:
// the pair count a, the substance and reaction report totals, and the
// qualifying population size. The remaining cells follow by subtraction.
func NewContingencyTable(substance, reaction string, pairCount, drugTotal, eventTotal, totalReports int64) (*ContingencyTable, error) {
	t := &ContingencyTable{
		Substance: substance,
		Reaction:  reaction,
		A:         pairCount,
		B:         drugTotal - pairCount,
		C:         eventTotal - pairCount,
		D:         totalReports - drugTotal - eventTotal + pairCount,
	}

	if err := t.Validate(totalReports); err != nil {
		return nil, err
	}

	return t, nil
}
