package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const GB = 1024 * 1024 * 1024

// GetAvailableDiskSpace returns available disk space in bytes for the given path.
// Works cross-platform (Linux, macOS, Windows) via gopsutil.
func GetAvailableDiskSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk space for %s: %w", path, err)
	}
	return usage.Free, nil
}

// SameFilesystem checks if two paths are on the same filesystem, used by the
// relocation executor to decide whether a Move can be a simple rename.
func SameFilesystem(path1, path2 string) (bool, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return false, fmt.Errorf("failed to get partitions: %w", err)
	}

	mount1 := findMountpoint(path1, partitions)
	mount2 := findMountpoint(path2, partitions)

	return mount1 == mount2 && mount1 != "", nil
}

func findMountpoint(path string, partitions []disk.PartitionStat) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	var bestMatch string
	for _, p := range partitions {
		if strings.HasPrefix(absPath, p.Mountpoint) && len(p.Mountpoint) > len(bestMatch) {
			bestMatch = p.Mountpoint
		}
	}
	return bestMatch
}

// CheckDiskSpace validates that there is sufficient disk space at the given path.
// Returns an error if insufficient space, nil if OK.
func CheckDiskSpace(path string, requiredMB int, logger *zerolog.Logger) error {
	available, err := GetAvailableDiskSpace(path)
	if err != nil {
		return err
	}

	requiredBytes := uint64(requiredMB) * 1024 * 1024
	if available < requiredBytes {
		return fmt.Errorf("insufficient disk space at %s: %.2f MB available, %d MB required",
			path, float64(available)/(1024*1024), requiredMB)
	}

	logger.Debug().
		Str("path", path).
		Float64("available_mb", float64(available)/(1024*1024)).
		Msg("Disk space check passed")

	return nil
}

// LogDiskSpaceWarnings logs warnings/errors based on available disk space during processing.
// Non-blocking: never returns an error.
func LogDiskSpaceWarnings(path string, logger *zerolog.Logger) {
	available, err := GetAvailableDiskSpace(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to check disk space during processing")
		return
	}

	availableGB := float64(available) / float64(GB)

	if available < GB {
		logger.Error().
			Float64("available_gb", availableGB).
			Msg("Critically low disk space - less than 1 GB available")
	} else if available < 5*GB {
		logger.Warn().
			Float64("available_gb", availableGB).
			Msg("Low disk space - less than 5 GB available")
	}
}
