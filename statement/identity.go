package statement

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// ExternalId derives the deterministic identity of a statement row. Rows
// carrying a bank reference use it directly; rows without one hash their
// observable fields instead. The same file always reproduces the same ids,
// which is what makes re-imports converge to zero inserts.
//
// With a reference:  {TAG}|{YYYYMMDD}{HHmm}{reference}|{amount 2dp}
// Without:           {TAG}|{md5(date|time|amount 2dp|description)}|{amount 2dp}
func ExternalId(p *Profile, r *Row) string {
	amount := r.Amount.StringFixed(2)
	reference := strings.TrimSpace(r.Reference)

	if reference != "" {
		dateStr := r.Date.Format("20060102")
		timeStr := strings.ReplaceAll(r.Time, ":", "")
		if len(timeStr) > 4 {
			timeStr = timeStr[:4]
		}
		if timeStr == "" {
			timeStr = "0000"
		}
		return fmt.Sprintf("%s|%s%s%s|%s", p.Tag, dateStr, timeStr, reference, amount)
	}

	base := fmt.Sprintf("%s|%s|%s|%s", r.Date.Format("2006-01-02"), r.Time, amount, r.Description)
	sum := md5.Sum([]byte(base))
	return fmt.Sprintf("%s|%s|%s", p.Tag, hex.EncodeToString(sum[:]), amount)
}

// ManualExternalId derives the identity of a manually created entry so the
// duplicate check covers hand-entered rows too.
func ManualExternalId(date, direction, amount, description string) string {
	return fmt.Sprintf("MANUAL|%s|%s|%s|%s", date, direction, amount, description)
}
