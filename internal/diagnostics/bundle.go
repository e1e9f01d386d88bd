package diagnostics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/k0kubun/pp"
	"github.com/klauspost/compress/zip"

	"github.com/subx-cli/subx/internal/cache"
	"github.com/subx-cli/subx/internal/config"
)

// WriteBundle assembles a diagnostics report (runtime facts, masked
// configuration, cache stats) and writes it as a zip archive to dir,
// grounded on the teacher's internal/pkg/crash WriteReport/compressReport.
func WriteBundle(dir string, cfg *config.Snapshot, cacheStats cache.Stats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}
	cleanupOldBundles(dir)

	timestamp := time.Now().Format("20060102_150405")
	tempPath := filepath.Join(dir, fmt.Sprintf("diagnostics_%s.txt", timestamp))
	finalPath := filepath.Join(dir, fmt.Sprintf("diagnostics_%s.zip", timestamp))

	var buf bytes.Buffer
	writeBundleContent(&buf, cfg, cacheStats)

	if err := os.WriteFile(tempPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics report: %w", err)
	}
	defer os.Remove(tempPath)

	if err := compress(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("compress diagnostics report: %w", err)
	}
	return finalPath, nil
}

func writeBundleContent(w *bytes.Buffer, cfg *config.Snapshot, cacheStats cache.Stats) {
	fmt.Fprintln(w, "SUBX DIAGNOSTICS REPORT")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "Timestamp: %s\n\n", time.Now().Format(time.RFC3339))

	fmt.Fprintln(w, "RUNTIME INFORMATION")
	fmt.Fprintln(w, "===================")
	fmt.Fprintln(w, NewRuntimeInfo().String())

	fmt.Fprintln(w, "ENVIRONMENT")
	fmt.Fprintln(w, "===========")
	printEnvironment(w)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CONFIGURATION")
	fmt.Fprintln(w, "=============")
	if cfg != nil {
		sanitized := *cfg
		sanitized.AI.APIKey = MaskAPIKey(sanitized.AI.APIKey)
		fmt.Fprintln(w, pp.Sprint(sanitized))
	} else {
		fmt.Fprintln(w, "(no configuration loaded)")
	}

	fmt.Fprintln(w, "\nMATCH CACHE")
	fmt.Fprintln(w, "===========")
	fmt.Fprintf(w, "Entries: %d\nBytes on disk: %d\n", cacheStats.EntryCount, cacheStats.TotalBytes)

	fmt.Fprintln(w, "\n=======================")
	fmt.Fprintln(w, "END OF REPORT")
}

// MaskAPIKey shows only the first and last four characters of a secret.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func printEnvironment(w *bytes.Buffer) {
	for _, env := range os.Environ() {
		if containsSensitiveInfo(env) {
			parts := strings.SplitN(env, "=", 2)
			fmt.Fprintf(w, "%s=****\n", parts[0])
			continue
		}
		fmt.Fprintln(w, env)
	}
}

func containsSensitiveInfo(env string) bool {
	upper := strings.ToUpper(env)
	for _, marker := range []string{"KEY", "TOKEN", "SECRET", "PASSWORD"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func compress(sourcePath, destPath string) error {
	zipFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	source, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	entry, err := zipWriter.Create(filepath.Base(sourcePath))
	if err != nil {
		return err
	}
	_, err = entry.Write(mustReadAll(source))
	return err
}

func mustReadAll(f *os.File) []byte {
	info, err := f.Stat()
	if err != nil {
		return nil
	}
	buf := make([]byte, info.Size())
	f.Read(buf)
	return buf
}

func cleanupOldBundles(dir string) {
	matches, _ := filepath.Glob(filepath.Join(dir, "diagnostics_*.zip"))
	if len(matches) < 10 {
		return
	}
	sort.Slice(matches, func(i, j int) bool {
		iInfo, _ := os.Stat(matches[i])
		jInfo, _ := os.Stat(matches[j])
		return iInfo.ModTime().After(jInfo.ModTime())
	})
	for _, path := range matches[10:] {
		os.Remove(path)
	}
}
