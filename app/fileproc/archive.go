package fileproc

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Unzip extracts every file entry of the archive flat into destDir.
// Entry paths are reduced to their base name, so nested archives flatten
// and entries at the same relative name overwrite each other.
func Unzip(zipFile, destDir string) error {
	archive, err := zip.OpenReader(zipFile)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
	}

	return nil
}

func extractEntry(entry *zip.File, destDir string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(destDir, filepath.Base(entry.Name)))
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
