package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services/extraction"
)

var (
	ingestCSV     string
	ingestXLSX    string
	ingestHTMLDir string
	ingestBaseURL string
	ingestReplace bool
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed and store knowledge-base documents",
	Long: `Loads documents from an FAQ export (CSV or XLSX) or a directory of pages,
embeds them and writes them to the document store.

Pages may be HTML files or crawler JSON dumps ({metadata:{url,title}, markdown, html}).
With --replace, stored documents of every ingested source URL are deleted first.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSV, "csv", "", "FAQ export in CSV format")
	ingestCmd.Flags().StringVar(&ingestXLSX, "xlsx", "", "FAQ export in XLSX format")
	ingestCmd.Flags().StringVar(&ingestHTMLDir, "html-dir", "", "directory of HTML pages or crawler JSON dumps")
	ingestCmd.Flags().StringVar(&ingestBaseURL, "base-url", "", "URL prefix for HTML files in --html-dir")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace stored documents of the same source URLs")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	ingestCmd.MarkFlagsMutuallyExclusive("csv", "xlsx", "html-dir")
	ingestCmd.MarkFlagsOneRequired("csv", "xlsx", "html-dir")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	sources, err := loadSources(ingestCSV, ingestXLSX, ingestHTMLDir, ingestBaseURL)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no documents found")
	}

	ctx := cmd.Context()
	deps, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	report, err := deps.Ingestion.Ingest(ctx, sources, ingestReplace)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Received: %d\n", report.Received)
	cmd.Printf("Skipped:  %d\n", report.Skipped)
	cmd.Printf("Embedded: %d\n", report.Embedded)
	cmd.Printf("Written:  %d\n", report.Written)
	if ingestReplace {
		cmd.Printf("Deleted:  %d\n", report.Deleted)
	}
	return nil
}

// loadSources reads the one input selected on the command line
func loadSources(csvPath, xlsxPath, htmlDir, baseURL string) ([]models.Source, error) {
	switch {
	case csvPath != "":
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		entries, err := extraction.LoadFAQCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", csvPath, err)
		}
		return extraction.Sources(entries), nil

	case xlsxPath != "":
		f, err := os.Open(xlsxPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		entries, err := extraction.LoadFAQSpreadsheet(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", xlsxPath, err)
		}
		return extraction.Sources(entries), nil

	case htmlDir != "":
		return loadPages(htmlDir, baseURL)

	default:
		return nil, errors.New("one of --csv, --xlsx or --html-dir is required")
	}
}

// loadPages walks dir in lexical order. JSON files are crawler dumps carrying
// their own URL; HTML files get baseURL joined with their relative path.
func loadPages(dir, baseURL string) ([]models.Source, error) {
	var sources []models.Source

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".html" && ext != ".htm" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		var page extraction.Page
		if ext == ".json" {
			page, err = extraction.LoadCrawledPage(f)
		} else {
			var url string
			url, err = pageURL(dir, path, baseURL)
			if err == nil {
				page, err = extraction.ExtractPage(url, f)
			}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if strings.TrimSpace(page.Content) == "" {
			return nil
		}

		sources = append(sources, page.Source())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func pageURL(root, path, baseURL string) (string, error) {
	if baseURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		return "file://" + filepath.ToSlash(abs), nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	return strings.TrimRight(baseURL, "/") + "/" + rel, nil
}
