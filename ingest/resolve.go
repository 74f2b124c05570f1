package ingest

import (
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

// EntityResolver maps a free-text company name, optionally with a registration
// number, onto an existing customer or supplier record, creating one when no
// stage of the cascade matches. Matching deliberately enumerates every row in
// primary-key order: the first match at the strongest stage wins, so behavior
// stays human-auditable. Swapping the full scan for an indexed lookup later
// must preserve that ordering.
//
// Two concurrent calls with the same unknown name can both reach the create
// stage and produce duplicates; entity names carry no uniqueness constraint and
// callers must not assume exactly-once creation.
type EntityResolver struct {
	db    *gorm.DB
	names NameNormalizer
	kind  DocumentKind
}

func NewCustomerResolver(db *gorm.DB) *EntityResolver {
	return &EntityResolver{db: db, names: CustomerNames, kind: KindCustomer}
}

func NewSupplierResolver(db *gorm.DB) *EntityResolver {
	return &EntityResolver{db: db, names: SupplierNames, kind: KindSupplier}
}

type entityRow struct {
	ID        uint
	Name      string
	OrgNumber string
}

// FindOrCreate resolves displayName to an entity id. The cascade, first match
// wins:
//
//  1. registration number, hyphens stripped on both sides
//  2. case-insensitive exact name
//  3. normalized-name equality
//  4. core-name equality or prefix containment (both cores >= 3 chars)
//  5. create a new entity with the name and number as supplied
func (r *EntityResolver) FindOrCreate(displayName string, orgNumber string) (uint, error) {
	rows, err := r.load()
	if err != nil {
		return 0, err
	}

	if reg := stripHyphens(orgNumber); reg != "" {
		for _, row := range rows {
			if stripHyphens(row.OrgNumber) == reg {
				return row.ID, nil
			}
		}
	}

	for _, row := range rows {
		if strings.EqualFold(row.Name, displayName) {
			return row.ID, nil
		}
	}

	if norm := r.names.Normalize(displayName); norm != "" {
		for _, row := range rows {
			if r.names.Normalize(row.Name) == norm {
				return row.ID, nil
			}
		}
	}

	if core := r.names.CoreName(displayName); utf8.RuneCountInString(core) >= 3 {
		for _, row := range rows {
			if coreNamesMatch(core, r.names.CoreName(row.Name)) {
				return row.ID, nil
			}
		}
	}

	return r.create(displayName, orgNumber)
}

func (r *EntityResolver) load() ([]entityRow, error) {
	q := r.db.Model(&Customer{})
	if r.kind == KindSupplier {
		q = r.db.Model(&Supplier{})
	}
	var rows []entityRow
	if err := q.Select("id", "name", "org_number").Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EntityResolver) create(name string, orgNumber string) (uint, error) {
	if r.kind == KindSupplier {
		s := Supplier{Name: name, OrgNumber: orgNumber}
		if err := r.db.Create(&s).Error; err != nil {
			return 0, err
		}
		return s.ID, nil
	}
	c := Customer{Name: name, OrgNumber: orgNumber}
	if err := r.db.Create(&c).Error; err != nil {
		return 0, err
	}
	return c.ID, nil
}

func coreNamesMatch(a string, b string) bool {
	if a == b && a != "" {
		return true
	}
	if utf8.RuneCountInString(a) < 3 || utf8.RuneCountInString(b) < 3 {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func stripHyphens(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}
