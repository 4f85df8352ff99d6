// Package naming provides the deterministic names and paths derived from
// hypervisor and domain identities. This includes capture job keys,
// capture image paths, and storage volume identifiers.
//
// These rules are shared by the API layer, the capture pipeline, and the
// static file server, so they must stay stable across releases.
package naming

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// CaptureExt is the extension of delivered capture images.
const CaptureExt = ".png"

// volumeIDSeparator joins a pool UUID and a volume index.
const volumeIDSeparator = "--"

// CaptureKey returns the capture job key for a VM display.
// Display 0 is the primary display and omits the suffix.
//
// Example: ("b3c1...", 0) → "b3c1..."; ("b3c1...", 1) → "b3c1..._1"
func CaptureKey(vmID string, display int) string {
	if display == 0 {
		return vmID
	}
	return fmt.Sprintf("%s_%d", vmID, display)
}

// CaptureRelPath returns the capture image path relative to the output root.
// Format: {hostID}/{vmID}[_{display}].png
func CaptureRelPath(hostID, vmID string, display int) string {
	return hostID + "/" + CaptureKey(vmID, display) + CaptureExt
}

// CapturePath returns the capture image path under outputDir.
func CapturePath(outputDir, hostID, vmID string, display int) string {
	return filepath.Join(outputDir, hostID, CaptureKey(vmID, display)+CaptureExt)
}

// VolumeID returns a URL-safe, fleet-unique volume identifier.
// Volume names are only unique per pool and may contain any character,
// so the id is built from the pool UUID and the volume's list index.
//
// Format: {poolID}--{index}
func VolumeID(poolID string, index int) string {
	return poolID + volumeIDSeparator + strconv.Itoa(index)
}

// ParseVolumeID splits a VolumeID back into its pool UUID and index.
func ParseVolumeID(id string) (string, int, error) {
	poolID, rawIndex, ok := strings.Cut(id, volumeIDSeparator)
	if !ok || poolID == "" {
		return "", 0, fmt.Errorf("invalid volume id: %s", id)
	}

	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("invalid volume index in id: %s", id)
	}

	return poolID, index, nil
}
