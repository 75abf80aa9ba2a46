package workflow

import (
	"testing"
)

func TestIsStatementFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"hesap_ozeti.xlsx", true},
		{"EKSTRE.XLS", true},
		{"makro_rapor.xlsm", true},
		{"sablon.xltx", true},
		{"sablon.xltm", true},
		{"  ekstre.xlsx  ", true},
		{"rapor.pdf", false},
		{"hareketler.csv", false},
		{"xlsx", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := isStatementFile(tc.filename); got != tc.want {
			t.Errorf("isStatementFile(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestFileDigestIsContentIdentity(t *testing.T) {
	a := fileDigest([]byte("statement bytes"))
	b := fileDigest([]byte("statement bytes"))
	c := fileDigest([]byte("other bytes"))

	if a != b {
		t.Errorf("same content produced different digests: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different content produced the same digest")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestAliasEmailFor(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"kerem@gmail.com", "kerem@cashrecon.app"},
		{"Kerem.Yilmaz@outlook.com", "kerem.yilmaz@cashrecon.app"},
		{" muhasebe@firma.com.tr ", "muhasebe@cashrecon.app"},
		{"noatsign", "noatsign@cashrecon.app"},
	}
	for _, tc := range tests {
		if got := aliasEmailFor(tc.original, "cashrecon.app"); got != tc.want {
			t.Errorf("aliasEmailFor(%q) = %q, want %q", tc.original, got, tc.want)
		}
	}
}
