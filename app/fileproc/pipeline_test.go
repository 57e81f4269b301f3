package fileproc

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patgeo/geoharvest/app/convert"
)

// stubConverter writes an empty csv for every file except those it is told
// to fail on.
type stubConverter struct {
	failOn string
}

func (c *stubConverter) Convert(shpFile, outDir string) (string, error) {
	if filepath.Base(shpFile) == c.failOn {
		return "", &convert.ProjectionError{File: shpFile}
	}
	base := strings.TrimSuffix(filepath.Base(shpFile), filepath.Ext(shpFile))
	outputFile := filepath.Join(outDir, base+".csv")
	if err := os.WriteFile(outputFile, []byte("NOME\n"), 0o644); err != nil {
		return "", err
	}
	return outputFile, nil
}

// writeArchive builds a zip containing the given entries, keyed by entry
// path with literal content.
func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()

	zipFile := filepath.Join(t.TempDir(), "dataset.zip")
	f, err := os.Create(zipFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	return zipFile
}

func TestUnzipFlattensEntries(t *testing.T) {
	zipFile := writeArchive(t, map[string]string{
		"strade.shp":        "shp",
		"strade.prj":        "prj",
		"data/nested.shp":   "nested",
		"readme.txt":        "doc",
		"empty-dir/":        "",
		"deep/path/new.csv": "csv",
	})

	destDir := t.TempDir()
	if err := Unzip(zipFile, destDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"strade.shp", "strade.prj", "nested.shp", "readme.txt", "new.csv"} {
		if _, err := os.Stat(filepath.Join(destDir, name)); err != nil {
			t.Errorf("expected %s in destination: %v", name, err)
		}
	}

	// nested paths flatten, so no subdirectories survive
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Errorf("unexpected directory %s after flat extraction", entry.Name())
		}
	}
}

func TestProcessorRunIsolatesFailures(t *testing.T) {
	zipFile := writeArchive(t, map[string]string{
		"strade.shp": "shp",
		"strade.prj": "prj",
		"orfano.shp": "shp",
		"readme.txt": "doc",
	})

	pruner := NewPruner([]string{"/", "/home"})
	processor := NewProcessor(&stubConverter{failOn: "orfano.shp"}, pruner)

	results, workDir, err := processor.Run(zipFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pruner.Run(workDir)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var succeeded, failed int
	for _, result := range results {
		if result.Err != nil {
			failed++
			if result.SourceFile != "orfano.shp" {
				t.Errorf("failed file = %q, want orfano.shp", result.SourceFile)
			}
			continue
		}
		succeeded++
		if _, statErr := os.Stat(result.OutputFile); statErr != nil {
			t.Errorf("output file missing: %v", statErr)
		}
		if filepath.Dir(result.OutputFile) != workDir {
			t.Errorf("output %q not in work directory %q", result.OutputFile, workDir)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Errorf("succeeded = %d, failed = %d, want 1 and 1", succeeded, failed)
	}
}

func TestProcessorRunEmptyArchive(t *testing.T) {
	zipFile := writeArchive(t, map[string]string{"readme.txt": "doc"})

	pruner := NewPruner([]string{"/", "/home"})
	processor := NewProcessor(&stubConverter{}, pruner)

	results, workDir, err := processor.Run(zipFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pruner.Run(workDir)

	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestProcessorRunCorruptArchive(t *testing.T) {
	zipFile := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(zipFile, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	pruner := NewPruner([]string{"/", "/home"})
	processor := NewProcessor(&stubConverter{}, pruner)

	if _, _, err := processor.Run(zipFile); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
