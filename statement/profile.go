// Package statement parses bank statement spreadsheets into normalized rows.
// It is a pure core: no database, no HTTP, no side effects. Callers feed it
// the 2-D cell grid of a sheet and get back normalized rows, deterministic
// row identities and a whole-file reconciliation verdict.
package statement

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Role names a logical statement column. Physical positions differ per bank;
// profiles map roles to column indexes.
type Role string

const (
	RoleDate        Role = "date"
	RoleTime        Role = "time"
	RoleAmount      Role = "amount"
	RoleBalance     Role = "balance"
	RoleDescription Role = "description"
	RoleReference   Role = "reference"
	RoleMovement    Role = "movement"
	RoleChannel     Role = "channel"
)

// AmountFormat selects the digit-grouping convention of a bank's amount
// cells.
type AmountFormat int

const (
	// AmountFormatUS is "1,234.56": comma grouping, dot decimal point.
	AmountFormatUS AmountFormat = iota
	// AmountFormatEU is "1.234,56": dot grouping, comma decimal point.
	AmountFormatEU
)

// Profile describes one bank's statement layout.
type Profile struct {
	// Tag prefixes every external id generated for this bank.
	Tag  string
	Name string

	// SourceLabel is stored on every ledger entry imported from this bank.
	SourceLabel string

	// Keywords holds, per role, the header texts that identify the column.
	// Matching is done on folded lowercase text.
	Keywords map[Role][]string

	// Columns maps each role to its zero-based physical column index.
	Columns map[Role]int

	// DateLayouts are tried in order when the date cell is not empty.
	DateLayouts []string

	// HeaderScanRows bounds the header search from the top of the sheet.
	HeaderScanRows int

	// FallbackHeaderRow is the zero-based header position assumed when the
	// scan finds nothing. Using the fallback is not an error.
	FallbackHeaderRow int

	// DateErrorEndsData controls what an unparseable date cell means. Banks
	// that append a footer after the movements set this to true so the first
	// bad date terminates the data region. Banks that interleave notes leave
	// it false and the row is skipped.
	DateErrorEndsData bool

	// AmountFormat is the grouping convention of the amount and balance
	// cells. All three current exports use US grouping.
	AmountFormat AmountFormat

	// ReconcileTolerance is the maximum absolute difference accepted between
	// the reported and the recomputed closing balance.
	ReconcileTolerance decimal.Decimal
}

var defaultTolerance = decimal.RequireFromString("0.05")

var akbankProfile = &Profile{
	Tag:         "AKB",
	Name:        "Akbank",
	SourceLabel: "akbank_excel",
	Keywords: map[Role][]string{
		RoleDate:        {"tarih", "date"},
		RoleTime:        {"saat", "time", "zaman"},
		RoleAmount:      {"tutar", "amount"},
		RoleBalance:     {"bakiye"},
		RoleDescription: {"aciklama"},
		RoleReference:   {"fis/dekont", "dekont no"},
	},
	Columns: map[Role]int{
		RoleDate:        0,
		RoleTime:        1,
		RoleAmount:      2,
		RoleBalance:     3,
		RoleDescription: 4,
		RoleReference:   5,
	},
	DateLayouts:        []string{"02.01.2006", "2006-01-02", "02.01.2006 15:04:05"},
	HeaderScanRows:     15,
	FallbackHeaderRow:  8,
	DateErrorEndsData:  false,
	AmountFormat:       AmountFormatUS,
	ReconcileTolerance: defaultTolerance,
}

var enparaProfile = &Profile{
	Tag:         "ENP",
	Name:        "Enpara",
	SourceLabel: "enpara_excel",
	Keywords: map[Role][]string{
		RoleDate:        {"tarih"},
		RoleMovement:    {"hareket tipi", "hareket"},
		RoleDescription: {"aciklama"},
		RoleAmount:      {"islem tutari", "islem tutar"},
		RoleBalance:     {"bakiye"},
	},
	Columns: map[Role]int{
		RoleDate:        1,
		RoleMovement:    2,
		RoleDescription: 5,
		RoleAmount:      7,
		RoleBalance:     8,
	},
	DateLayouts:        []string{"02.01.2006", "2006-01-02"},
	HeaderScanRows:     20,
	FallbackHeaderRow:  10,
	DateErrorEndsData:  true,
	AmountFormat:       AmountFormatUS,
	ReconcileTolerance: defaultTolerance,
}

var yapikrediProfile = &Profile{
	Tag:         "YKD",
	Name:        "Yapı Kredi",
	SourceLabel: "yapikredi_excel",
	Keywords: map[Role][]string{
		RoleDate:        {"tarih"},
		RoleTime:        {"saat"},
		RoleMovement:    {"islem"},
		RoleChannel:     {"kanal"},
		RoleReference:   {"referans no", "referans"},
		RoleDescription: {"aciklama"},
		RoleAmount:      {"islem tutari"},
		RoleBalance:     {"bakiye"},
	},
	Columns: map[Role]int{
		RoleDate:        0,
		RoleTime:        1,
		RoleMovement:    2,
		RoleChannel:     3,
		RoleReference:   4,
		RoleDescription: 5,
		RoleAmount:      6,
		RoleBalance:     7,
	},
	DateLayouts:        []string{"02/01/2006", "02.01.2006", "2006-01-02"},
	HeaderScanRows:     20,
	FallbackHeaderRow:  10,
	DateErrorEndsData:  true,
	AmountFormat:       AmountFormatUS,
	ReconcileTolerance: defaultTolerance,
}

var registry = []*Profile{akbankProfile, enparaProfile, yapikrediProfile}

// Profiles returns the registered bank profiles in detection order.
func Profiles() []*Profile {
	out := make([]*Profile, len(registry))
	copy(out, registry)
	return out
}

var ErrUnknownProfile = errors.New("unknown bank profile")

// ProfileByTag resolves a bank tag such as "AKB" to its profile.
func ProfileByTag(tag string) (*Profile, error) {
	for _, p := range registry {
		if p.Tag == tag {
			return p, nil
		}
	}
	return nil, ErrUnknownProfile
}
