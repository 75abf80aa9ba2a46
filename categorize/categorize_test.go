package categorize

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SHELL İSTANBUL 1234", "SHELL ISTANBUL"},
		{"Maaş Ödemesi REF:5678", "MAAS ODEMESI"},
		{"POS Garanti - 1234.45 TL", "POS GARANTI 45 TL"},
		{"Kira ödemesi 01.12.2025", "KIRA ODEMESI"},
		{"TRX998877 havale", "HAVALE"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCategorizeMerchantTable(t *testing.T) {
	table := DefaultTable()

	res := table.CategorizeWithConfidence("SHELL PETROL AVM", amt("850"), models.DirectionOut)
	if res.Category != CategoryAkaryakit {
		t.Errorf("category = %s, want %s", res.Category, CategoryAkaryakit)
	}
	if res.Method != "merchant_map" {
		t.Errorf("method = %s, want merchant_map", res.Method)
	}
}

func TestCategorizePatterns(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		desc      string
		amount    string
		direction models.Direction
		want      string
	}{
		{"POS GARANTI SATIS", "1200", models.DirectionIn, CategoryPosGeliri},
		{"EFT GELEN TRANSFER", "4000", models.DirectionIn, CategoryEftTahsilat},
		{"OFIS KIRA ODEMESI", "30000", models.DirectionOut, CategoryKira},
		{"PERSONEL MAAS ODEMESI", "85000", models.DirectionOut, CategoryMaas},
		{"KDV BEYANNAME ODEMESI", "12000", models.DirectionOut, CategoryVergi},
		{"AYEDAS ELEKTRIK FATURASI", "950", models.DirectionOut, CategoryElektrik},
		{"ZORUNLU TRAFIK SIGORTA", "2200", models.DirectionOut, CategorySigorta},
		{"GOOGLE REKLAM", "1500", models.DirectionOut, CategoryPazarlama},
	}
	for _, tc := range tests {
		got := table.Categorize(tc.desc, amt(tc.amount), tc.direction)
		if got != tc.want {
			t.Errorf("Categorize(%q) = %s, want %s", tc.desc, got, tc.want)
		}
	}
}

func TestCategorizeSignOverridesNothingHere(t *testing.T) {
	// An inbound POS movement without a bank name still reads as POS income.
	table := DefaultTable()
	if got := table.Categorize("POS TAHSILATI", amt("500"), models.DirectionIn); got != CategoryPosGeliri {
		t.Errorf("got %s, want %s", got, CategoryPosGeliri)
	}
	// The same text outbound falls through to the heuristics.
	if got := table.Categorize("POS CIHAZ UCRETI", amt("500"), models.DirectionOut); got == CategoryPosGeliri {
		t.Errorf("outbound POS text must not be POS income")
	}
}

func TestCategorizeAmountHeuristics(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		desc      string
		amount    string
		direction models.Direction
		want      string
	}{
		{"ABC TEDARIK", "50000", models.DirectionOut, CategoryDigerGider},
		{"MNG KURYE GONDERI", "600", models.DirectionOut, CategoryKargo},
		{"BENZIN ALIMI", "900", models.DirectionOut, CategoryAkaryakit},
		{"KAHVE IKRAM", "120", models.DirectionOut, CategoryOfisMalzeme},
		{"GELEN TUTAR", "9000", models.DirectionIn, CategoryEftTahsilat},
		{"GELEN TUTAR", "300", models.DirectionIn, CategoryDigerGelir},
	}
	for _, tc := range tests {
		got := table.Categorize(tc.desc, amt(tc.amount), tc.direction)
		if got != tc.want {
			t.Errorf("Categorize(%q, %s, %s) = %s, want %s", tc.desc, tc.amount, tc.direction, got, tc.want)
		}
	}
}

func TestCategorizeEmptyDescriptionFallsBack(t *testing.T) {
	table := DefaultTable()

	res := table.CategorizeWithConfidence("", amt("100"), models.DirectionIn)
	if res.Category != CategoryDigerGelir || res.Method != "fallback" {
		t.Errorf("got %+v, want DIGER_GELIR fallback", res)
	}
	res = table.CategorizeWithConfidence("  ", amt("100"), models.DirectionOut)
	if res.Category != CategoryDigerGider || res.Method != "fallback" {
		t.Errorf("got %+v, want DIGER_GIDER fallback", res)
	}
}

func TestCategorizeDeterministicOnOverlap(t *testing.T) {
	table := NewTable(map[string]string{
		"KARGO A": CategoryKargo,
		"KARGO":   CategoryPazarlama,
	})

	first := table.Categorize("KARGO A GONDERI", amt("100"), models.DirectionOut)
	for i := 0; i < 20; i++ {
		if got := table.Categorize("KARGO A GONDERI", amt("100"), models.DirectionOut); got != first {
			t.Fatalf("iteration %d: %s != %s", i, got, first)
		}
	}
}
