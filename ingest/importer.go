package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrAlreadyImported is returned by ImportFile when the path is already on
// file. Batch imports count the same condition as a skip instead.
var ErrAlreadyImported = errors.New("file already imported")

// extractError marks a per-file extraction failure that must not abort a batch.
type extractError struct {
	err error
}

func (e *extractError) Error() string { return e.err.Error() }
func (e *extractError) Unwrap() error { return e.err }

// folderReadError marks an unreadable folder; a year import records it and
// continues with the next folder.
type folderReadError struct {
	err error
}

func (e *folderReadError) Error() string { return e.err.Error() }
func (e *folderReadError) Unwrap() error { return e.err }

// FolderImportResult accounts for one folder's import. Errors holds one
// "<fileName>: <cause>" line per file that failed extraction.
type FolderImportResult struct {
	FolderName string
	Month      int // 0 = not a month folder
	Imported   int
	Skipped    int
	Errors     []string
}

// YearImportResult aggregates a whole-year import: every month folder's result
// in scan order, plus the root folder's own result when the root holds
// documents directly.
type YearImportResult struct {
	Year              int
	FiscalYearID      uint
	FiscalYearCreated bool
	Folders           []FolderImportResult
	Root              *FolderImportResult
	TotalImported     int
	TotalSkipped      int
	TotalErrors       []string
}

type ImporterConfig struct {
	// Extension of importable documents, default ".pdf". Compared
	// case-insensitively.
	Extension string
}

// Importer walks folders of scanned documents and turns them into invoice
// records. Each operation runs to completion in the calling goroutine; the
// unique index on SourcePath backs the idempotence check when separate
// processes import concurrently.
type Importer struct {
	cfg       ImporterConfig
	db        *gorm.DB
	extractor TextExtractor
	log       *logrus.Logger
}

func NewImporter(db *gorm.DB, extractor TextExtractor, log *logrus.Logger, cfg ImporterConfig) *Importer {
	cfg.Extension = normalizeExt(cfg.Extension)
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Importer{cfg: cfg, db: db, extractor: extractor, log: log}
}

type fileOutcome int

const (
	outcomeImported fileOutcome = iota
	outcomeSkipped
)

// ImportFolder imports every qualifying document directly inside path into the
// given fiscal year. Files already on record are skipped, extraction failures
// are recorded per file; neither aborts the folder. Store failures do.
func (im *Importer) ImportFolder(path string, fiscalYearID uint, label string, month int) (*FolderImportResult, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &folderReadError{err: err}
	}

	res := &FolderImportResult{FolderName: label, Month: month}
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), im.cfg.Extension) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(path, e.Name()))
		if err != nil {
			abs = filepath.Join(path, e.Name())
		}
		out, err := im.importOne(abs, e.Name(), fiscalYearID)
		if err != nil {
			var xe *extractError
			if errors.As(err, &xe) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.Name(), xe.err))
				im.log.WithField("file", e.Name()).Warnf("extraction failed: %v", xe.err)
				continue
			}
			return nil, err
		}
		switch out {
		case outcomeImported:
			res.Imported++
		case outcomeSkipped:
			res.Skipped++
		}
	}
	im.log.WithFields(logrus.Fields{
		"folder":   label,
		"imported": res.Imported,
		"skipped":  res.Skipped,
		"errors":   len(res.Errors),
	}).Debug("folder import done")
	return res, nil
}

// ImportYear imports a whole year folder: the fiscal year is looked up by
// number or created inactive, every month folder is imported in scan order,
// and finally the root itself when it holds documents directly.
func (im *Importer) ImportYear(rootPath string, year int) (*YearImportResult, error) {
	fy, created, err := findOrCreateFiscalYear(im.db, year)
	if err != nil {
		return nil, err
	}
	preview, err := ScanYearFolder(rootPath, im.cfg.Extension)
	if err != nil {
		return nil, err
	}

	res := &YearImportResult{Year: year, FiscalYearID: fy.ID, FiscalYearCreated: created}
	for _, f := range preview.Folders {
		fr, err := im.ImportFolder(f.Path, fy.ID, f.Name, f.Month)
		if err != nil {
			var fe *folderReadError
			if errors.As(err, &fe) {
				res.TotalErrors = append(res.TotalErrors, fmt.Sprintf("%s: %v", f.Name, fe.err))
				im.log.WithField("folder", f.Name).Warnf("unreadable folder: %v", fe.err)
				continue
			}
			return nil, err
		}
		res.Folders = append(res.Folders, *fr)
		res.TotalImported += fr.Imported
		res.TotalSkipped += fr.Skipped
		res.TotalErrors = append(res.TotalErrors, fr.Errors...)
	}

	if preview.RootDocs > 0 {
		rr, err := im.ImportFolder(rootPath, fy.ID, preview.FolderName, 0)
		if err != nil {
			return nil, err
		}
		res.Root = rr
		res.TotalImported += rr.Imported
		res.TotalSkipped += rr.Skipped
		res.TotalErrors = append(res.TotalErrors, rr.Errors...)
	}
	return res, nil
}

// ScanAndImport runs a single-folder import against a registered watched
// folder and stamps its last-scanned time.
func (im *Importer) ScanAndImport(folderID uint, fiscalYearID uint) (*FolderImportResult, error) {
	var wf WatchedFolder
	if err := im.db.First(&wf, folderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("watched folder %d is not registered", folderID)
		}
		return nil, err
	}
	if err := requireFiscalYear(im.db, fiscalYearID); err != nil {
		return nil, err
	}
	res, err := im.ImportFolder(wf.Path, fiscalYearID, filepath.Base(wf.Path), 0)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := im.db.Model(&WatchedFolder{}).Where("id = ?", wf.ID).
		Update("last_scanned_at", &now).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// ImportFiles applies the per-file import logic to an explicit list of paths.
// Already-imported files count as skipped, extraction failures are recorded.
func (im *Importer) ImportFiles(paths []string, fiscalYearID uint) (*FolderImportResult, error) {
	if err := requireFiscalYear(im.db, fiscalYearID); err != nil {
		return nil, err
	}
	res := &FolderImportResult{FolderName: "files"}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		name := filepath.Base(abs)
		out, err := im.importOne(abs, name, fiscalYearID)
		if err != nil {
			var xe *extractError
			if errors.As(err, &xe) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, xe.err))
				continue
			}
			return nil, err
		}
		switch out {
		case outcomeImported:
			res.Imported++
		case outcomeSkipped:
			res.Skipped++
		}
	}
	return res, nil
}

// ImportFile imports one document outside any batch context. Unlike batch
// imports, an already-imported path is a hard failure: the caller asked for
// exactly this file and nothing was done.
func (im *Importer) ImportFile(path string, fiscalYearID uint) error {
	if err := requireFiscalYear(im.db, fiscalYearID); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	already, err := im.alreadyImported(abs)
	if err != nil {
		return err
	}
	if already {
		return fmt.Errorf("%s: %w", filepath.Base(abs), ErrAlreadyImported)
	}
	_, err = im.importOne(abs, filepath.Base(abs), fiscalYearID)
	return err
}

func (im *Importer) importOne(absPath string, fileName string, fiscalYearID uint) (fileOutcome, error) {
	already, err := im.alreadyImported(absPath)
	if err != nil {
		return 0, err
	}
	if already {
		im.log.WithField("file", fileName).Debug("skip already imported")
		return outcomeSkipped, nil
	}

	content, err := im.extractor.Extract(absPath)
	if err != nil {
		return 0, &extractError{err: err}
	}

	kind := Classify(fileName)
	var invoiceDate *time.Time
	if d, ok := ExtractInvoiceDate(fileName); ok {
		invoiceDate = &d
	}

	if kind == KindCustomer {
		inv := CustomerInvoice{
			FiscalYearID: fiscalYearID,
			InvoiceDate:  invoiceDate,
			SourcePath:   absPath,
			FileName:     fileName,
			Content:      &content,
			Status:       StatusImported,
		}
		if err := im.db.Create(&inv).Error; err != nil {
			return 0, err
		}
	} else {
		inv := SupplierInvoice{
			FiscalYearID: fiscalYearID,
			InvoiceDate:  invoiceDate,
			SourcePath:   absPath,
			FileName:     fileName,
			Content:      &content,
			Status:       StatusImported,
		}
		if err := im.db.Create(&inv).Error; err != nil {
			return 0, err
		}
	}
	im.log.WithFields(logrus.Fields{"file": fileName, "kind": kind}).Debug("imported")
	return outcomeImported, nil
}

// alreadyImported reports whether either invoice table references absPath.
func (im *Importer) alreadyImported(absPath string) (bool, error) {
	var ci CustomerInvoice
	err := im.db.Select("id").Where("source_path = ?", absPath).First(&ci).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	var si SupplierInvoice
	err = im.db.Select("id").Where("source_path = ?", absPath).First(&si).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}
