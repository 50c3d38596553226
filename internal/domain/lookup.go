package domain

import "fmt"

type LookupKind int

const (
	lookupNone LookupKind = iota
	LookupMerchantReference
	LookupProcessorTransactionID
)

// PaymentLookup addresses exactly one payment, either by the merchant reference we
// generated or by the transaction id the processor assigned.
type PaymentLookup struct {
	kind  LookupKind
	value string
}

func ByMerchantReference(ref string) PaymentLookup {
	return PaymentLookup{kind: LookupMerchantReference, value: ref}
}

func ByProcessorTransactionID(id string) PaymentLookup {
	return PaymentLookup{kind: LookupProcessorTransactionID, value: id}
}

// LookupFrom builds a lookup from two mutually exclusive identifiers.
func LookupFrom(merchantRef, processorTxID string) (PaymentLookup, error) {
	switch {
	case merchantRef != "" && processorTxID != "":
		return PaymentLookup{}, fmt.Errorf("LookupFrom: both identifiers given: %w", ErrAmbiguousIdentifier)
	case merchantRef != "":
		return ByMerchantReference(merchantRef), nil
	case processorTxID != "":
		return ByProcessorTransactionID(processorTxID), nil
	default:
		return PaymentLookup{}, fmt.Errorf("LookupFrom: no identifier given: %w", ErrAmbiguousIdentifier)
	}
}

func (l PaymentLookup) Kind() LookupKind { return l.kind }
func (l PaymentLookup) Value() string    { return l.value }

func (l PaymentLookup) Valid() bool {
	return l.kind != lookupNone && l.value != ""
}

func (l PaymentLookup) String() string {
	switch l.kind {
	case LookupMerchantReference:
		return "merchant_reference=" + l.value
	case LookupProcessorTransactionID:
		return "processor_tx_id=" + l.value
	default:
		return "<none>"
	}
}
