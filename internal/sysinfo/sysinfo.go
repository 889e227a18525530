// Package sysinfo reports the machine resources the model advisor sizes against.
package sysinfo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"super-mouse-ai/internal/domain"
)

const meminfoPath = "/proc/meminfo"

// Detect returns core count and total memory. VRAM cannot be probed without
// a GPU runtime, so vramGB is taken as given.
func Detect(vramGB float64) domain.SystemInfo {
	info := domain.SystemInfo{
		CPUCoreCount: float64(runtime.NumCPU()),
		TotalVRAMGB:  vramGB,
	}
	if gb, err := totalMemoryGB(meminfoPath); err == nil {
		info.TotalMemoryGB = gb
	}
	return info
}

func totalMemoryGB(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return parseMemTotal(f)
}

// parseMemTotal reads the MemTotal line of a meminfo listing, in kB.
func parseMemTotal(r io.Reader) (float64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemTotal: %w", err)
		}
		return kb * 1000 / 1e9, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("MemTotal not found")
}
