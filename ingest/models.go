package ingest

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusImported is the status tag stamped on every freshly imported invoice.
// Later workflows (amount correction, entity mapping) move it forward.
const StatusImported = "imported"

// WatchedFolder is a directory the user registered for repeated scanning.
type WatchedFolder struct {
	ID            uint   `gorm:"primaryKey"`
	Path          string `gorm:"uniqueIndex;size:1024"`
	LastScannedAt *time.Time
	CreatedAt     time.Time
}

// CustomerInvoice is an outgoing invoice created from a scanned document.
// SourcePath is the de-duplication key: at most one row per absolute file path.
type CustomerInvoice struct {
	ID            uint   `gorm:"primaryKey"`
	FiscalYearID  uint   `gorm:"index"`
	CustomerID    *uint  `gorm:"index"`
	InvoiceNumber string `gorm:"size:64"`
	InvoiceDate   *time.Time
	DueDate       *time.Time
	Amount        decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	VAT           decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	Total         decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	SourcePath    string              `gorm:"uniqueIndex;size:1024"`
	FileName      string              `gorm:"size:512"`
	Content       *string             `gorm:"type:text"`
	Status        string              `gorm:"index;size:32;default:imported"`
	CreatedAt     time.Time
}

// SupplierInvoice is an incoming invoice created from a scanned document.
type SupplierInvoice struct {
	ID            uint   `gorm:"primaryKey"`
	FiscalYearID  uint   `gorm:"index"`
	SupplierID    *uint  `gorm:"index"`
	InvoiceNumber string `gorm:"size:64"`
	InvoiceDate   *time.Time
	DueDate       *time.Time
	Amount        decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	VAT           decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	Total         decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	SourcePath    string              `gorm:"uniqueIndex;size:1024"`
	FileName      string              `gorm:"size:512"`
	Content       *string             `gorm:"type:text"`
	Status        string              `gorm:"index;size:32;default:imported"`
	CreatedAt     time.Time
}

// Customer is a party the business issues invoices to. Name is mutable, the id
// is not. OrgNumber is compared with hyphens stripped.
type Customer struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:256"`
	OrgNumber  string `gorm:"size:32"`
	Address    string `gorm:"size:256"`
	PostalCode string `gorm:"size:16"`
	City       string `gorm:"size:128"`
	CreatedAt  time.Time
}

// Supplier is a party the business receives invoices from.
type Supplier struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:256"`
	OrgNumber  string `gorm:"size:32"`
	Address    string `gorm:"size:256"`
	PostalCode string `gorm:"size:16"`
	City       string `gorm:"size:128"`
	CreatedAt  time.Time
}

// FiscalYear groups invoices by accounting year. Years created implicitly by a
// year import start out inactive.
type FiscalYear struct {
	ID        uint   `gorm:"primaryKey"`
	Year      int    `gorm:"uniqueIndex"`
	Label     string `gorm:"size:64"`
	Active    bool   `gorm:"default:false"`
	CreatedAt time.Time
}
