package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = CloseDB(db) })
	return db
}

// mockExtractor serves canned text per file name and can be told to fail.
type mockExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	fail  map[string]error
	calls []string
}

func (m *mockExtractor) Extract(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := filepath.Base(path)
	m.calls = append(m.calls, name)
	if err, ok := m.fail[name]; ok {
		return "", err
	}
	if txt, ok := m.texts[name]; ok {
		return txt, nil
	}
	return "text of " + name, nil
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustFiscalYear(t *testing.T, db *gorm.DB, year int) *FiscalYear {
	t.Helper()
	fy, _, err := findOrCreateFiscalYear(db, year)
	if err != nil {
		t.Fatal(err)
	}
	return fy
}

func TestImportFolder_IdempotentReruns(t *testing.T) {
	db := newTestDB(t)
	fy := mustFiscalYear(t, db, 2024)

	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "2024-03-01 Faktura Acme AB.pdf"))
	mustWrite(t, filepath.Join(dir, "Telia mars.pdf"))
	mustWrite(t, filepath.Join(dir, "Elhandel.PDF"))
	mustWrite(t, filepath.Join(dir, "notes.txt"))

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	res, err := im.ImportFolder(dir, fy.ID, "03 Mars", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 3 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Fatalf("first run: imported=%d skipped=%d errors=%v", res.Imported, res.Skipped, res.Errors)
	}

	var customers, suppliers int64
	if err := db.Model(&CustomerInvoice{}).Count(&customers).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&SupplierInvoice{}).Count(&suppliers).Error; err != nil {
		t.Fatal(err)
	}
	if customers != 1 || suppliers != 2 {
		t.Fatalf("expected 1 customer and 2 supplier invoices, got %d and %d", customers, suppliers)
	}

	var ci CustomerInvoice
	if err := db.First(&ci).Error; err != nil {
		t.Fatal(err)
	}
	if ci.InvoiceDate == nil || ci.InvoiceDate.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("expected invoice date 2024-03-01, got %v", ci.InvoiceDate)
	}
	if ci.Status != StatusImported {
		t.Fatalf("expected status %q, got %q", StatusImported, ci.Status)
	}
	if ci.Content == nil || !strings.Contains(*ci.Content, "Faktura Acme") {
		t.Fatal("expected extracted text stored on the invoice")
	}

	// Second run over the same folder imports nothing.
	res, err = im.ImportFolder(dir, fy.ID, "03 Mars", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 0 || res.Skipped != 3 {
		t.Fatalf("rerun: imported=%d skipped=%d", res.Imported, res.Skipped)
	}
}

func TestImportFolder_RecordsExtractionFailures(t *testing.T) {
	db := newTestDB(t)
	fy := mustFiscalYear(t, db, 2024)

	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.pdf"))
	mustWrite(t, filepath.Join(dir, "b.pdf"))
	mustWrite(t, filepath.Join(dir, "c.pdf"))

	ext := &mockExtractor{fail: map[string]error{"b.pdf": fmt.Errorf("encrypted document")}}
	im := NewImporter(db, ext, nil, ImporterConfig{})
	res, err := im.ImportFolder(dir, fy.ID, "dir", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 {
		t.Fatalf("expected 2 imported, got %d", res.Imported)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "b.pdf: encrypted document" {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	var n int64
	if err := db.Model(&SupplierInvoice{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows persisted, got %d", n)
	}
}

func TestImportYear(t *testing.T) {
	db := newTestDB(t)
	base := t.TempDir()
	root := filepath.Join(base, "Bokföring 2024")
	mustWrite(t, filepath.Join(root, "01 Januari", "jan.pdf"))
	mustWrite(t, filepath.Join(root, "02 Februari", "feb1.pdf"))
	mustWrite(t, filepath.Join(root, "02 Februari", "feb2.pdf"))
	mustWrite(t, filepath.Join(root, "loose.pdf"))

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	res, err := im.ImportYear(root, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FiscalYearCreated {
		t.Fatal("expected the fiscal year to be created")
	}
	if len(res.Folders) != 2 || res.Folders[0].FolderName != "01 Januari" || res.Folders[1].FolderName != "02 Februari" {
		t.Fatalf("unexpected folder results: %+v", res.Folders)
	}
	if res.Root == nil || res.Root.Imported != 1 {
		t.Fatalf("expected root folder result with 1 import, got %+v", res.Root)
	}
	if res.TotalImported != 4 || res.TotalSkipped != 0 || len(res.TotalErrors) != 0 {
		t.Fatalf("totals: imported=%d skipped=%d errors=%v", res.TotalImported, res.TotalSkipped, res.TotalErrors)
	}

	// Rerun reuses the fiscal year and skips everything.
	res, err = im.ImportYear(root, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if res.FiscalYearCreated {
		t.Fatal("rerun must reuse the existing fiscal year")
	}
	if res.TotalImported != 0 || res.TotalSkipped != 4 {
		t.Fatalf("rerun totals: imported=%d skipped=%d", res.TotalImported, res.TotalSkipped)
	}
}

func TestImportYear_UnreadableFolderDoesNotAbort(t *testing.T) {
	db := newTestDB(t)
	base := t.TempDir()
	root := filepath.Join(base, "Bokföring 2024")
	mustWrite(t, filepath.Join(root, "01 Januari", "jan.pdf"))
	mustWrite(t, filepath.Join(root, "02 Februari", "feb.pdf"))
	mustWrite(t, filepath.Join(root, "03 Mars", "mar.pdf"))
	chmodNoRead(t, filepath.Join(root, "02 Februari"))

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	res, err := im.ImportYear(root, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalImported != 2 {
		t.Fatalf("expected the readable folders imported, got %d", res.TotalImported)
	}
	if len(res.Folders) != 2 || res.Folders[0].FolderName != "01 Januari" || res.Folders[1].FolderName != "03 Mars" {
		t.Fatalf("unexpected folder results: %+v", res.Folders)
	}
	if len(res.TotalErrors) != 1 || !strings.HasPrefix(res.TotalErrors[0], "02 Februari: ") {
		t.Fatalf("expected the unreadable folder recorded, got %v", res.TotalErrors)
	}
}

func TestImportFile(t *testing.T) {
	db := newTestDB(t)
	fy := mustFiscalYear(t, db, 2024)

	path := filepath.Join(t.TempDir(), "Bauhaus kvitto.pdf")
	mustWrite(t, path)

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	if err := im.ImportFile(path, fy.ID); err != nil {
		t.Fatal(err)
	}
	err := im.ImportFile(path, fy.ID)
	if !errors.Is(err, ErrAlreadyImported) {
		t.Fatalf("expected ErrAlreadyImported, got %v", err)
	}
	if !strings.Contains(err.Error(), "Bauhaus kvitto.pdf") {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestImportFile_UnknownFiscalYear(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "x.pdf")
	mustWrite(t, path)

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	err := im.ImportFile(path, 42)
	if err == nil || !strings.Contains(err.Error(), "fiscal year 42 does not exist") {
		t.Fatalf("expected fiscal year error, got %v", err)
	}
}

func TestImportFiles_MixedOutcomes(t *testing.T) {
	db := newTestDB(t)
	fy := mustFiscalYear(t, db, 2024)

	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.pdf")
	bad := filepath.Join(dir, "bad.pdf")
	mustWrite(t, ok)
	mustWrite(t, bad)

	ext := &mockExtractor{fail: map[string]error{"bad.pdf": fmt.Errorf("no text layer")}}
	im := NewImporter(db, ext, nil, ImporterConfig{})

	res, err := im.ImportFiles([]string{ok, bad, ok}, fy.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Skipped != 1 {
		t.Fatalf("imported=%d skipped=%d", res.Imported, res.Skipped)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "bad.pdf: no text layer" {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestScanAndImport(t *testing.T) {
	db := newTestDB(t)
	fy := mustFiscalYear(t, db, 2024)

	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.pdf"))
	wf, err := RegisterFolder(db, dir)
	if err != nil {
		t.Fatal(err)
	}
	if wf.LastScannedAt != nil {
		t.Fatal("a fresh folder has no last-scanned time")
	}

	im := NewImporter(db, &mockExtractor{}, nil, ImporterConfig{})
	res, err := im.ScanAndImport(wf.ID, fy.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 {
		t.Fatalf("expected 1 import, got %d", res.Imported)
	}

	var after WatchedFolder
	if err := db.First(&after, wf.ID).Error; err != nil {
		t.Fatal(err)
	}
	if after.LastScannedAt == nil {
		t.Fatal("expected last-scanned time to be stamped")
	}

	_, err = im.ScanAndImport(999, fy.ID)
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unregistered-folder error, got %v", err)
	}
}

func TestOpenQueryDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	wf, err := RegisterFolder(db, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := CloseDB(db); err != nil {
		t.Fatal(err)
	}

	qdb, err := OpenQueryDB(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = CloseDB(qdb) })
	folders, err := ListFolders(qdb)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0].ID != wf.ID || folders[0].Path != wf.Path {
		t.Fatalf("unexpected folders via query handle: %+v", folders)
	}
}

func TestRemoveFolder(t *testing.T) {
	db := newTestDB(t)
	wf, err := RegisterFolder(db, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := RemoveFolder(db, wf.ID); err != nil {
		t.Fatal(err)
	}
	err = RemoveFolder(db, wf.ID)
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected missing-folder error, got %v", err)
	}
	if _, err := os.Stat(wf.Path); err != nil {
		t.Fatalf("removing the registration must not touch the directory: %v", err)
	}
}
