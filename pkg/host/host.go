package host

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const cpuSampleInterval = 200 * time.Millisecond

type ResponseModel struct {
	Cpus  interface{} `json:"cpus,omitempty"`
	Mem   interface{} `json:"mem,omitempty"`
	Disks interface{} `json:"disk,omitempty"`
}

type CpuUsageInfo struct {
	Cores       int    `json:"cores"`
	UsedPercent string `json:"usedPercent"`
}

type MemUsageInfo struct {
	Total       string `json:"total"`
	Used        string `json:"used"`
	UsedPercent string `json:"usedPercent"`
}

type DiskUsageInfo struct {
	Path        string `json:"path"`
	Total       string `json:"total"`
	Used        string `json:"used"`
	UsedPercent string `json:"usedPercent"`
}

// Manager reports resource usage of the machine the logger runs on. The
// gopsutil calls are fields so they can be stubbed.
type Manager struct {
	cpuPercent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	cpuCounts  func(ctx context.Context, logical bool) (int, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewManager() *Manager {
	return &Manager{
		cpuPercent: cpu.PercentWithContext,
		cpuCounts:  cpu.CountsWithContext,
		memory:     mem.VirtualMemoryWithContext,
		partitions: disk.PartitionsWithContext,
		usage:      disk.UsageWithContext,
	}
}

func (m *Manager) Cpu(ctx context.Context) (*CpuUsageInfo, error) {
	cores, err := m.cpuCounts(ctx, true)
	if err != nil {
		return nil, err
	}
	percent, err := m.cpuPercent(ctx, cpuSampleInterval, false)
	if err != nil {
		return nil, err
	}
	if len(percent) == 0 {
		return nil, fmt.Errorf("no cpu sample")
	}
	return &CpuUsageInfo{Cores: cores, UsedPercent: formatPercent(percent[0])}, nil
}

func (m *Manager) Mem(ctx context.Context) (*MemUsageInfo, error) {
	vm, err := m.memory(ctx)
	if err != nil {
		return nil, err
	}
	return &MemUsageInfo{
		Total:       formatBytes(vm.Total),
		Used:        formatBytes(vm.Used),
		UsedPercent: formatPercent(vm.UsedPercent),
	}, nil
}

// Disks reports every physical partition. Partitions whose usage cannot be
// read are left out.
func (m *Manager) Disks(ctx context.Context) ([]*DiskUsageInfo, error) {
	parts, err := m.partitions(ctx, false)
	if err != nil {
		return nil, err
	}
	disks := make([]*DiskUsageInfo, 0, len(parts))
	for _, p := range parts {
		u, err := m.usage(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		disks = append(disks, &DiskUsageInfo{
			Path:        p.Mountpoint,
			Total:       formatBytes(u.Total),
			Used:        formatBytes(u.Used),
			UsedPercent: formatPercent(u.UsedPercent),
		})
	}
	return disks, nil
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
