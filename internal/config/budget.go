package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Budget is the resolved byte budget for each cache pool.
type Budget struct {
	TotalBytes     int64
	ViewportBytes  int64
	ThumbnailBytes int64
	PreviewBytes   int64
}

// TierForHostMemory maps installed memory to a total cache budget.
func TierForHostMemory(hostBytes int64) int64 {
	switch {
	case hostBytes <= 0:
		return 512 * MiB
	case hostBytes <= 8*GiB:
		return 512 * MiB
	case hostBytes <= 16*GiB:
		return 1 * GiB
	default:
		return 2 * GiB
	}
}

// ResolveBudget computes the pool budgets once at startup.
func (c *Config) ResolveBudget() Budget {
	total := c.Budget.TotalBytes
	if total <= 0 {
		host := c.Budget.HostMemoryBytes
		if host <= 0 {
			host = DetectHostMemory()
		}
		total = TierForHostMemory(host)
	}

	share := c.Budget.ViewportShare
	if share <= 0 || share >= 1 {
		share = 0.70
	}

	viewport := int64(float64(total) * share)
	b := Budget{
		TotalBytes:     total,
		ViewportBytes:  viewport,
		ThumbnailBytes: total - viewport,
	}

	if c.Preview.Enabled {
		preview := int64(float64(total) * c.Preview.Share)
		if c.Preview.MinBytes > 0 && preview < c.Preview.MinBytes {
			preview = c.Preview.MinBytes
		}
		if c.Preview.MaxBytes > 0 && preview > c.Preview.MaxBytes {
			preview = c.Preview.MaxBytes
		}
		b.PreviewBytes = preview
	}

	return b
}

// DetectHostMemory returns installed memory in bytes, or 0 when unknown.
// Only Linux exposes it without cgo; other platforms fall back to the
// smallest tier.
func DetectHostMemory() int64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	return parseMemInfo(bufio.NewScanner(f))
}

func parseMemInfo(sc *bufio.Scanner) int64 {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * KiB
	}
	return 0
}
