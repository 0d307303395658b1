package mikrotik

import (
	"fmt"
	"math"
)

// MbpsToKbps converts a megabit rate to the kilobit unit RouterOS
// expects, using the binary factor the target devices are provisioned
// with (1 Mbps = 1024 Kbps).
func MbpsToKbps(mbps float64) int {
	return int(math.Round(mbps * 1024))
}

// FormatRateLimit renders a simple-queue max-limit value, upload first:
// "<uploadKbps>k/<downloadKbps>k".
func FormatRateLimit(downloadMbps, uploadMbps float64) string {
	return fmt.Sprintf("%dk/%dk", MbpsToKbps(uploadMbps), MbpsToKbps(downloadMbps))
}
