package models

import "errors"

var (
	ErrInvalidDirection   = errors.New("direction must be 'in' or 'out'")
	ErrInvalidPlannedType = errors.New("type must be one of INVOICE, CHEQUE, NOTE, PO, OTHER")
)

// Direction of a cash movement relative to the company account.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "in":
		return DirectionIn, nil
	case "out":
		return DirectionOut, nil
	default:
		return "", ErrInvalidDirection
	}
}

type PlannedStatus string

const (
	PlannedStatusOpen      PlannedStatus = "OPEN"
	PlannedStatusPartial   PlannedStatus = "PARTIAL"
	PlannedStatusSettled   PlannedStatus = "SETTLED"
	PlannedStatusCancelled PlannedStatus = "CANCELLED"
)

type PlannedType string

const (
	PlannedTypeInvoice       PlannedType = "INVOICE"
	PlannedTypeCheque        PlannedType = "CHEQUE"
	PlannedTypeNote          PlannedType = "NOTE"
	PlannedTypePurchaseOrder PlannedType = "PO"
	PlannedTypeOther         PlannedType = "OTHER"
)

func ParsePlannedType(s string) (PlannedType, error) {
	switch s {
	case "INVOICE":
		return PlannedTypeInvoice, nil
	case "CHEQUE":
		return PlannedTypeCheque, nil
	case "NOTE":
		return PlannedTypeNote, nil
	case "PO":
		return PlannedTypePurchaseOrder, nil
	case "OTHER":
		return PlannedTypeOther, nil
	default:
		return "", ErrInvalidPlannedType
	}
}

type MatchType string

const (
	MatchTypeManual MatchType = "MANUAL"
	MatchTypeAuto   MatchType = "AUTO"
)

// EntrySource records where a ledger entry came from.
type EntrySource string

const (
	EntrySourceManual EntrySource = "manual"
	EntrySourceCSV    EntrySource = "csv"
)
