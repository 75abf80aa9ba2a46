// Package categorize assigns a category label to a cash movement from its
// description, amount and direction. It is a pure collaborator of the
// ingestion pipeline: deterministic, no I/O, no storage.
package categorize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/cashrecon_backend/models"
)

const (
	CategoryPosGeliri   = "POS_GELIRI"
	CategoryEftTahsilat = "EFT_TAHSILAT"
	CategoryOnlineSatis = "ONLINE_SATIS"
	CategoryKira        = "KIRA"
	CategoryMaas        = "MAAS"
	CategoryVergi       = "VERGI"
	CategoryElektrik    = "ELEKTRIK"
	CategorySu          = "SU"
	CategoryInternet    = "INTERNET"
	CategorySigorta     = "SIGORTA"
	CategoryOfisMalzeme = "OFIS_MALZEME"
	CategoryBakimOnarim = "BAKIM_ONARIM"
	CategoryPazarlama   = "PAZARLAMA"
	CategoryKargo       = "KARGO"
	CategoryAkaryakit   = "AKARYAKIT"
	CategoryDigerGelir  = "DIGER_GELIR"
	CategoryDigerGider  = "DIGER_GIDER"
)

// Result carries the label plus how it was decided, for callers that want to
// surface the confidence.
type Result struct {
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
	Method     string `json:"method"`
}

const (
	methodMerchant  = "merchant_map"
	methodPattern   = "pattern"
	methodHeuristic = "heuristic"
	methodFallback  = "fallback"
)

type merchantEntry struct {
	key      string
	category string
}

// Table is an immutable merchant lookup built once at construction. Entries
// are kept sorted so lookup order, and therefore the result on overlapping
// keys, is deterministic.
type Table struct {
	merchants []merchantEntry
}

// NewTable builds a Table from merchant-name to category pairs. Keys are
// normalized the same way descriptions are.
func NewTable(merchants map[string]string) *Table {
	entries := make([]merchantEntry, 0, len(merchants))
	for key, category := range merchants {
		normalized := Normalize(key)
		if normalized == "" {
			continue
		}
		entries = append(entries, merchantEntry{key: normalized, category: category})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return &Table{merchants: entries}
}

// DefaultTable returns the built-in merchant table.
func DefaultTable() *Table {
	return NewTable(map[string]string{
		"SHELL":       CategoryAkaryakit,
		"OPET":        CategoryAkaryakit,
		"BP PETROL":   CategoryAkaryakit,
		"MIGROS":      CategoryOfisMalzeme,
		"A101":        CategoryOfisMalzeme,
		"BIM":         CategoryOfisMalzeme,
		"TRENDYOL":    CategoryOnlineSatis,
		"HEPSIBURADA": CategoryOnlineSatis,
		"ARAS KARGO":  CategoryKargo,
		"MNG KARGO":   CategoryKargo,
		"YURTICI":     CategoryKargo,
		"CK ENERJI":   CategoryElektrik,
		"BEDAS":       CategoryElektrik,
		"ISKI":        CategorySu,
		"TURKCELL":    CategoryInternet,
		"VODAFONE":    CategoryInternet,
		"SUPERONLINE": CategoryInternet,
		"GOOGLE ADS":  CategoryPazarlama,
		"META ADS":    CategoryPazarlama,
	})
}

var turkishUpperFolder = strings.NewReplacer(
	"Ç", "C", "ç", "C",
	"Ğ", "G", "ğ", "G",
	"İ", "I", "i", "I",
	"ı", "I",
	"Ö", "O", "ö", "O",
	"Ş", "S", "ş", "S",
	"Ü", "U", "ü", "U",
)

var (
	reTrxId     = regexp.MustCompile(`\bTRX\d+\b`)
	reRefId     = regexp.MustCompile(`\bREF:?\s*\d+\b`)
	reDate      = regexp.MustCompile(`\b\d{2}[./]\d{2}[./]\d{4}\b`)
	reLongNum   = regexp.MustCompile(`\b\d{4,}\b`)
	rePunct     = regexp.MustCompile(`[^A-Z0-9\s]`)
	reSpaces    = regexp.MustCompile(`\s+`)
	rePosGarant = regexp.MustCompile(`POS\s+GARANT|GARANT\s+POS`)
	rePosYkb    = regexp.MustCompile(`POS\s+YKB|YAPI KRED\s+POS|YAPIKREDI\s+POS`)
	rePosIsbank = regexp.MustCompile(`POS\s+ISBANK|ISBANK\s+POS`)
	rePosAkbank = regexp.MustCompile(`POS\s+AKBANK|AKBANK\s+POS`)
)

// Normalize prepares a description for matching: uppercase, Turkish
// diacritics folded to ASCII, transaction ids, reference codes, dates and
// long digit runs removed, punctuation dropped, whitespace collapsed.
//
//	"Maaş Ödemesi REF:5678" -> "MAAS ODEMESI"
//	"SHELL İSTANBUL 1234"   -> "SHELL ISTANBUL 1234"
func Normalize(description string) string {
	text := strings.TrimSpace(description)
	if text == "" {
		return ""
	}

	text = turkishUpperFolder.Replace(text)
	text = strings.ToUpper(text)

	text = reTrxId.ReplaceAllString(text, "")
	text = reRefId.ReplaceAllString(text, "")
	text = reDate.ReplaceAllString(text, "")
	text = reLongNum.ReplaceAllString(text, "")

	text = rePunct.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func fallback(direction models.Direction) Result {
	category := CategoryDigerGider
	if direction == models.DirectionIn {
		category = CategoryDigerGelir
	}
	return Result{Category: category, Confidence: 30, Method: methodFallback}
}

// Categorize returns only the label. Most callers want this.
func (t *Table) Categorize(description string, amount decimal.Decimal, direction models.Direction) string {
	return t.CategorizeWithConfidence(description, amount, direction).Category
}

// CategorizeWithConfidence runs the full pipeline: merchant table first,
// then pattern rules, then amount heuristics, then the direction fallback.
func (t *Table) CategorizeWithConfidence(description string, amount decimal.Decimal, direction models.Direction) Result {
	text := Normalize(description)
	if text == "" {
		return fallback(direction)
	}

	for _, entry := range t.merchants {
		if strings.Contains(text, entry.key) {
			return Result{Category: entry.category, Confidence: 96, Method: methodMerchant}
		}
	}

	if res, ok := matchPattern(text, direction); ok {
		return res
	}

	return heuristic(text, amount, direction)
}

func matchPattern(text string, direction models.Direction) (Result, bool) {
	pattern := func(category string, confidence int) (Result, bool) {
		return Result{Category: category, Confidence: confidence, Method: methodPattern}, true
	}

	if rePosGarant.MatchString(text) || rePosYkb.MatchString(text) ||
		rePosIsbank.MatchString(text) || rePosAkbank.MatchString(text) {
		return pattern(CategoryPosGeliri, 95)
	}
	if strings.Contains(text, "POS") && direction == models.DirectionIn {
		return pattern(CategoryPosGeliri, 88)
	}

	if direction == models.DirectionIn && containsAny(text, "TAHSILAT", "EFT", "HAVALE", "HVL") {
		return pattern(CategoryEftTahsilat, 92)
	}

	if containsAny(text, "ONLINE SAT", "E TICARET", "ETICARET") {
		return pattern(CategoryOnlineSatis, 90)
	}

	if strings.Contains(text, "KIRA") {
		return pattern(CategoryKira, 95)
	}
	if containsAny(text, "MAAS", "PERSONEL MAA", "UCRET ODEMESI") {
		return pattern(CategoryMaas, 95)
	}
	if containsAny(text, "VERGI", "KDV", "SGK", "MUHTASAR") {
		return pattern(CategoryVergi, 95)
	}

	if containsAny(text, "ELEKTRIK", "CK ENERJI", "BEDAS", "AYEDAS") {
		return pattern(CategoryElektrik, 92)
	}
	if containsAny(text, "SU FATURASI", "SU BEDELI", "ISKI", "ASKI") {
		return pattern(CategorySu, 92)
	}
	if containsAny(text, "INTERNET", "SUPERONLINE", "TURKCELL", "TTNET", "VODAFONE") {
		return pattern(CategoryInternet, 92)
	}

	if strings.Contains(text, "SIGORTA") {
		return pattern(CategorySigorta, 90)
	}
	if containsAny(text, "KIRTASIYE", "OFIS MALZ") {
		return pattern(CategoryOfisMalzeme, 88)
	}
	if containsAny(text, "BAKIM", "ONARIM", "TAMIR") {
		return pattern(CategoryBakimOnarim, 88)
	}
	if containsAny(text, "PAZARLAMA", "REKLAM", "ADVERTISING", "GOOGLE", "FACEBOOK", "INSTAGRAM", "META") {
		return pattern(CategoryPazarlama, 90)
	}

	return Result{}, false
}

var (
	band250   = decimal.NewFromInt(250)
	band1000  = decimal.NewFromInt(1000)
	band2500  = decimal.NewFromInt(2500)
	band5000  = decimal.NewFromInt(5000)
	band25000 = decimal.NewFromInt(25000)
)

func heuristic(text string, amount decimal.Decimal, direction models.Direction) Result {
	if direction == models.DirectionOut {
		switch {
		case amount.GreaterThan(band25000):
			return Result{Category: CategoryDigerGider, Confidence: 55, Method: methodHeuristic}
		case amount.GreaterThan(band2500):
			return Result{Category: CategoryDigerGider, Confidence: 52, Method: methodHeuristic}
		case amount.GreaterThan(band250):
			if containsAny(text, "KARGO", "NAKLIYE", "KURYE") {
				return Result{Category: CategoryKargo, Confidence: 65, Method: methodHeuristic}
			}
			if containsAny(text, "YAKIT", "BENZIN", "MOTORIN") {
				return Result{Category: CategoryAkaryakit, Confidence: 65, Method: methodHeuristic}
			}
			return Result{Category: CategoryDigerGider, Confidence: 50, Method: methodHeuristic}
		default:
			if containsAny(text, "MARKET", "BAKKAL", "MANAV", "KAHVE") {
				return Result{Category: CategoryOfisMalzeme, Confidence: 62, Method: methodHeuristic}
			}
			return Result{Category: CategoryDigerGider, Confidence: 48, Method: methodHeuristic}
		}
	}

	switch {
	case amount.GreaterThanOrEqual(band5000):
		return Result{Category: CategoryEftTahsilat, Confidence: 70, Method: methodHeuristic}
	case amount.GreaterThanOrEqual(band1000):
		return Result{Category: CategoryEftTahsilat, Confidence: 62, Method: methodHeuristic}
	default:
		return Result{Category: CategoryDigerGelir, Confidence: 55, Method: methodHeuristic}
	}
}
