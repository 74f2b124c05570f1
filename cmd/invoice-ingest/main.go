package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"invoice-ingest/ingest"
)

var (
	flagConfig string
	flagDB     string
	flagExt    string
	flagDebug  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "invoice-ingest: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "invoice-ingest",
		Short:        "Scan folders of invoice documents into the bookkeeping database",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file path")
	cmd.PersistentFlags().StringVar(&flagDB, "db", "bookkeeping.db", "SQLite database path")
	cmd.PersistentFlags().StringVar(&flagExt, "ext", ingest.DefaultExtension, "Document extension to import")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable per-file debug logs")
	cmd.AddCommand(
		newScanCmd(),
		newImportYearCmd(),
		newImportFolderCmd(),
		newImportFileCmd(),
		newFoldersCmd(),
		newMatchCmd("match-customer", ingest.NewCustomerResolver),
		newMatchCmd("match-supplier", ingest.NewSupplierResolver),
	)
	return cmd
}

type settings struct {
	dbPath string
	ext    string
	debug  bool
}

// loadSettings merges the optional config file with explicitly set CLI flags,
// flags winning.
func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg := &ingest.FileConfig{}
	if flagConfig != "" {
		cfg, err := ingest.LoadConfig(flagConfig)
		if err != nil {
			return settings{}, fmt.Errorf("load config: %w", err)
		}
		fileCfg = cfg
	}
	changed := func(name string) bool {
		f := cmd.Root().PersistentFlags().Lookup(name)
		return f != nil && f.Changed
	}

	s := settings{dbPath: fileCfg.Database.Path, ext: fileCfg.Extension, debug: fileCfg.Debug}
	if s.dbPath == "" || changed("db") {
		s.dbPath = flagDB
	}
	if s.ext == "" || changed("ext") {
		s.ext = flagExt
	}
	if changed("debug") {
		s.debug = flagDebug
	}
	return s, nil
}

func openImporter(cmd *cobra.Command) (*ingest.Importer, *gorm.DB, settings, func(), error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, settings{}, nil, err
	}
	db, err := ingest.OpenDB(s.dbPath)
	if err != nil {
		return nil, nil, settings{}, nil, fmt.Errorf("open db: %w", err)
	}
	im := ingest.NewImporter(db, nil, ingest.NewLogger(s.debug), ingest.ImporterConfig{Extension: s.ext})
	return im, db, s, func() { _ = ingest.CloseDB(db) }, nil
}

// openQueryDB opens the database without running migrations, for commands
// that only read.
func openQueryDB(cmd *cobra.Command) (*gorm.DB, func(), error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := ingest.OpenQueryDB(s.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return db, func() { _ = ingest.CloseDB(db) }, nil
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Preview a year folder before importing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			preview, err := ingest.ScanYearFolder(args[0], s.ext)
			if err != nil {
				return err
			}
			if preview.Year != 0 {
				fmt.Printf("%s (year %d)\n", preview.FolderName, preview.Year)
			} else {
				fmt.Printf("%s (no year detected)\n", preview.FolderName)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, f := range preview.Folders {
				month := "-"
				if f.Month != 0 {
					month = strconv.Itoa(f.Month)
				}
				fmt.Fprintf(w, "  %s\tmonth %s\tdocuments %d\n", f.Name, month, f.DocCount)
			}
			w.Flush()
			fmt.Printf("root documents: %d\ntotal: %d\n", preview.RootDocs, preview.TotalDocs)
			return nil
		},
	}
}

func newImportYearCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "import-year <dir>",
		Short: "Import a whole year folder of invoice documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, _, s, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if year == 0 {
				preview, err := ingest.ScanYearFolder(args[0], s.ext)
				if err != nil {
					return err
				}
				if preview.Year == 0 {
					return fmt.Errorf("no year in folder name %q, pass --year", preview.FolderName)
				}
				year = preview.Year
			}
			res, err := im.ImportYear(args[0], year)
			if err != nil {
				return err
			}
			printYearResult(res)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Fiscal year (default: detected from the folder name)")
	return cmd
}

func newImportFolderCmd() *cobra.Command {
	var fiscalYear uint
	cmd := &cobra.Command{
		Use:   "import-folder <dir>",
		Short: "Import one folder into an existing fiscal year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, db, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			var fy ingest.FiscalYear
			if err := db.First(&fy, fiscalYear).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("fiscal year %d does not exist", fiscalYear)
				}
				return err
			}
			label := filepath.Base(args[0])
			month, _ := ingest.DetectMonth(label)
			res, err := im.ImportFolder(args[0], fy.ID, label, month)
			if err != nil {
				return err
			}
			printFolderResult(res)
			return nil
		},
	}
	cmd.Flags().UintVar(&fiscalYear, "fiscal-year", 0, "Fiscal year id to import into")
	_ = cmd.MarkFlagRequired("fiscal-year")
	return cmd
}

func newImportFileCmd() *cobra.Command {
	var fiscalYear uint
	cmd := &cobra.Command{
		Use:   "import-file <path>",
		Short: "Import a single document (fails if it is already on file)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, _, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := im.ImportFile(args[0], fiscalYear); err != nil {
				return err
			}
			fmt.Printf("imported %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().UintVar(&fiscalYear, "fiscal-year", 0, "Fiscal year id to import into")
	_ = cmd.MarkFlagRequired("fiscal-year")
	return cmd
}

func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage the watched-folder registry",
	}

	add := &cobra.Command{
		Use:   "add <dir>",
		Short: "Register a folder for scanning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			wf, err := ingest.RegisterFolder(db, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("registered folder %d: %s\n", wf.ID, wf.Path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openQueryDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			folders, err := ingest.ListFolders(db)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, f := range folders {
				last := "never"
				if f.LastScannedAt != nil {
					last = f.LastScannedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%s\tlast scanned %s\n", f.ID, f.Path, last)
			}
			return w.Flush()
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a registered folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("folder id: %w", err)
			}
			_, db, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			return ingest.RemoveFolder(db, uint(id))
		},
	}

	var fiscalYear uint
	sync := &cobra.Command{
		Use:   "sync <id>",
		Short: "Scan and import a registered folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("folder id: %w", err)
			}
			im, _, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			res, err := im.ScanAndImport(uint(id), fiscalYear)
			if err != nil {
				return err
			}
			printFolderResult(res)
			return nil
		},
	}
	sync.Flags().UintVar(&fiscalYear, "fiscal-year", 0, "Fiscal year id to import into")
	_ = sync.MarkFlagRequired("fiscal-year")

	cmd.AddCommand(add, list, rm, sync)
	return cmd
}

func newMatchCmd(use string, newResolver func(*gorm.DB) *ingest.EntityResolver) *cobra.Command {
	var orgNumber string
	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: "Resolve a company name to an entity, creating one if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, closeDB, err := openImporter(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			id, err := newResolver(db).FindOrCreate(args[0], orgNumber)
			if err != nil {
				return err
			}
			fmt.Printf("entity id %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgNumber, "org-no", "", "Registration number (hyphens ignored)")
	return cmd
}

func printFolderResult(res *ingest.FolderImportResult) {
	fmt.Printf("%s: imported %d, skipped %d\n", res.FolderName, res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func printYearResult(res *ingest.YearImportResult) {
	created := ""
	if res.FiscalYearCreated {
		created = " (created)"
	}
	fmt.Printf("fiscal year %d, id %d%s\n", res.Year, res.FiscalYearID, created)
	for _, f := range res.Folders {
		printFolderResult(&f)
	}
	if res.Root != nil {
		printFolderResult(res.Root)
	}
	fmt.Printf("total: imported %d, skipped %d, errors %d\n",
		res.TotalImported, res.TotalSkipped, len(res.TotalErrors))
}
