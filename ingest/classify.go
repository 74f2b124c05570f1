package ingest

import (
	"regexp"
	"time"
)

// DocumentKind tells which side of the books a scanned document belongs to.
type DocumentKind string

const (
	KindCustomer DocumentKind = "customer"
	KindSupplier DocumentKind = "supplier"
)

// Outgoing invoices are exported by the invoicing workflow as
// "YYYY-MM-DD Faktura <customer>.pdf". The date must be zero-padded.
var customerFilePattern = regexp.MustCompile(`^(?i)\d{4}-\d{2}-\d{2} +(faktura|invoice)`)

var leadingDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\b`)

// Classify decides whether a file name is an outgoing (customer) or incoming
// (supplier) invoice. Total: anything that does not match the customer pattern
// falls through to supplier.
func Classify(fileName string) DocumentKind {
	if customerFilePattern.MatchString(fileName) {
		return KindCustomer
	}
	return KindSupplier
}

// ExtractInvoiceDate returns the leading ISO date of a file name, if any.
func ExtractInvoiceDate(fileName string) (time.Time, bool) {
	m := leadingDatePattern.FindString(fileName)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
