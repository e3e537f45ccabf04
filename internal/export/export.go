// Package export writes the CSV/JSON companions of each HTML report and can
// bundle an output directory into a ZIP archive with a hash manifest.
package export

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteCSV writes header plus one row per record to path.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// manifest records the hash of every bundled file for integrity verification.
type manifest struct {
	Version     string         `json:"version"`
	Hostname    string         `json:"hostname"`
	Tool        string         `json:"tool"`
	CreatedAt   time.Time      `json:"created_at"`
	ToolVersion string         `json:"tool_version"`
	Files       []manifestFile `json:"files"`
}

type manifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Bundle creates <outputDir>.zip containing every file in outputDir plus a
// manifest.json with SHA-256 hashes. Returns the archive path.
func Bundle(outputDir, hostname, tool, toolVersion string) (string, error) {
	zipPath := outputDir + ".zip"

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	dirBase := filepath.Base(outputDir)

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}

	var files []manifestFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outputDir, entry.Name()))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		zf, err := w.Create(dirBase + "/" + entry.Name())
		if err != nil {
			return "", fmt.Errorf("zip create %s: %w", entry.Name(), err)
		}
		if _, err := zf.Write(content); err != nil {
			return "", fmt.Errorf("zip write %s: %w", entry.Name(), err)
		}

		h := sha256.Sum256(content)
		files = append(files, manifestFile{
			Name:   entry.Name(),
			SHA256: hex.EncodeToString(h[:]),
			Size:   info.Size(),
		})
	}

	m := manifest{
		Version:     "1.0",
		Hostname:    hostname,
		Tool:        tool,
		CreatedAt:   time.Now().UTC(),
		ToolVersion: toolVersion,
		Files:       files,
	}
	mJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	zf, err := w.Create(dirBase + "/manifest.json")
	if err != nil {
		return "", fmt.Errorf("zip create manifest: %w", err)
	}
	if _, err := zf.Write(mJSON); err != nil {
		return "", fmt.Errorf("zip write manifest: %w", err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return "", fmt.Errorf("close zip file: %w", err)
	}
	return zipPath, nil
}

// RunDir creates a dated output directory <root>/<tool>_YYYYMMDD_HHMMSS.
func RunDir(root, tool string, now time.Time) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("%s_%s", tool, now.Format("20060102_150405")))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}
