// Package fileproc handles the local file side of a harvest: streamed
// downloads, archive extraction, batched vector-to-tabular conversion and
// safety-guarded cleanup of scratch directories.
package fileproc

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/patgeo/geoharvest/app/convert"
)

// ConversionResult records the outcome for one vector file found in an
// archive. A failed conversion never invalidates sibling results.
type ConversionResult struct {
	SourceFile string
	OutputFile string
	Err        error
}

// Processor extracts a downloaded archive and converts every vector file
// candidate it contains.
type Processor struct {
	converter convert.Converter
	pruner    *Pruner
}

// NewProcessor creates a processor using the given conversion adapter and
// guarded cleanup routine.
func NewProcessor(converter convert.Converter, pruner *Pruner) *Processor {
	return &Processor{converter: converter, pruner: pruner}
}

// Run extracts zipFile into a fresh scratch directory, converts each .shp
// candidate into a shared work directory and prunes the extraction
// directory. Per-file conversion errors are recorded and logged, and the
// batch continues; a batch with zero successes is legal. The returned work
// directory is owned by the caller, who must prune it after consuming the
// output files.
func (p *Processor) Run(zipFile string) ([]ConversionResult, string, error) {
	unzipDir, err := os.MkdirTemp("", "*_unzip")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	workDir, err := os.MkdirTemp("", "*_csv")
	if err != nil {
		p.pruner.Run(unzipDir)
		return nil, "", fmt.Errorf("failed to create work directory: %w", err)
	}

	if err := Unzip(zipFile, unzipDir); err != nil {
		p.pruner.Run(unzipDir)
		p.pruner.Run(workDir)
		return nil, "", err
	}

	entries, err := os.ReadDir(unzipDir)
	if err != nil {
		p.pruner.Run(unzipDir)
		p.pruner.Run(workDir)
		return nil, "", fmt.Errorf("failed to enumerate extraction directory: %w", err)
	}

	var results []ConversionResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".shp") {
			continue
		}

		shpFile := filepath.Join(unzipDir, entry.Name())
		slog.Debug("Converting vector file", "file", shpFile)

		outputFile, err := p.converter.Convert(shpFile, workDir)
		if err != nil {
			slog.Error("Conversion failed", "file", shpFile, "error", err)
			results = append(results, ConversionResult{SourceFile: entry.Name(), Err: err})
			continue
		}
		results = append(results, ConversionResult{SourceFile: entry.Name(), OutputFile: outputFile})
	}

	p.pruner.Run(unzipDir)

	return results, workDir, nil
}
