package workflow

import (
	"strconv"
	"testing"
)

func TestCsvColumnIndex(t *testing.T) {
	idx, err := csvColumnIndex(
		[]string{"Date", " description", "AMOUNT", "direction", "extra"},
		csvEntryColumns,
	)
	if err != nil {
		t.Fatalf("csvColumnIndex: %v", err)
	}
	if idx["date"] != 0 || idx["description"] != 1 || idx["amount"] != 2 || idx["direction"] != 3 {
		t.Errorf("unexpected mapping: %v", idx)
	}
}

func TestCsvColumnIndexMissingColumns(t *testing.T) {
	_, err := csvColumnIndex([]string{"date", "amount"}, csvEntryColumns)
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestImportSummaryErrorSampling(t *testing.T) {
	summary := &ImportSummary{}
	for i := 0; i < maxSampledErrors+25; i++ {
		summary.addError(RowError{Row: i + 1, Error: "row " + strconv.Itoa(i+1)})
	}
	if len(summary.Errors) != maxSampledErrors {
		t.Errorf("sampled errors = %d, want %d", len(summary.Errors), maxSampledErrors)
	}
	if summary.Errors[0].Row != 1 || summary.Errors[maxSampledErrors-1].Row != maxSampledErrors {
		t.Error("sampling must keep the first errors in order")
	}
}
