package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenDB opens (or creates) the bookkeeping database and migrates its schema.
// Call once at startup and close the handle via CloseDB on shutdown.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&WatchedFolder{},
		&FiscalYear{},
		&Customer{},
		&Supplier{},
		&CustomerInvoice{},
		&SupplierInvoice{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenQueryDB opens an existing database for querying without mutating schema.
func OpenQueryDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RegisterFolder adds an absolute path to the watched-folder registry.
func RegisterFolder(db *gorm.DB, path string) (*WatchedFolder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	wf := WatchedFolder{Path: abs}
	if err := db.Create(&wf).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

func ListFolders(db *gorm.DB) ([]WatchedFolder, error) {
	var out []WatchedFolder
	if err := db.Order("id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func RemoveFolder(db *gorm.DB, id uint) error {
	tx := db.Delete(&WatchedFolder{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("watched folder %d is not registered", id)
	}
	return nil
}

func findOrCreateFiscalYear(db *gorm.DB, year int) (*FiscalYear, bool, error) {
	var fy FiscalYear
	err := db.Where("year = ?", year).First(&fy).Error
	if err == nil {
		return &fy, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	fy = FiscalYear{Year: year, Label: strconv.Itoa(year)}
	if err := db.Create(&fy).Error; err != nil {
		return nil, false, err
	}
	return &fy, true, nil
}

func requireFiscalYear(db *gorm.DB, id uint) error {
	var fy FiscalYear
	err := db.Select("id").First(&fy, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("fiscal year %d does not exist", id)
	}
	return err
}
