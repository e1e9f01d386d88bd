// Package diagnostics builds a support bundle describing the running
// machine, the active configuration, and the match cache, grounded on
// the teacher's internal/pkg/crash runtime/report writer.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// RuntimeInfo collects host, process, and Go runtime facts for a bundle.
type RuntimeInfo struct {
	StartTime time.Time
	builder   strings.Builder
}

func NewRuntimeInfo() *RuntimeInfo {
	return &RuntimeInfo{StartTime: time.Now()}
}

func (ri *RuntimeInfo) String() string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	if hostInfo, err := host.Info(); err == nil {
		ri.builder.WriteString("Host Information\n––––––––––––––––\n")
		fmt.Fprintf(&ri.builder, "Hostname:\t%s\n", hostInfo.Hostname)
		fmt.Fprintf(&ri.builder, "OS:\t\t%s\n", hostInfo.OS)
		fmt.Fprintf(&ri.builder, "Platform:\t%s %s\n", hostInfo.Platform, hostInfo.PlatformVersion)
		fmt.Fprintf(&ri.builder, "Kernel Version:\t%s\n", hostInfo.KernelVersion)
		fmt.Fprintf(&ri.builder, "System Uptime:\t%s\n\n", time.Duration(hostInfo.Uptime)*time.Second)
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		ri.builder.WriteString("Memory Information\n––––––––––––––––––\n")
		fmt.Fprintf(&ri.builder, "Total:\t\t%s\n", humanize.Bytes(vmem.Total))
		fmt.Fprintf(&ri.builder, "Used:\t\t%s (%.1f%%)\n", humanize.Bytes(vmem.Used), vmem.UsedPercent)
		fmt.Fprintf(&ri.builder, "Free:\t\t%s\n\n", humanize.Bytes(vmem.Free))
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		ri.builder.WriteString("CPU Information\n–––––––––––––––\n")
		fmt.Fprintf(&ri.builder, "Model:\t\t%s\n", cpuInfo[0].ModelName)
		fmt.Fprintf(&ri.builder, "Cores:\t\t%d Physical, %d Logical\n\n", cpuInfo[0].Cores, runtime.NumCPU())
	}

	if partitions, err := disk.Partitions(false); err == nil {
		ri.builder.WriteString("Disk Information\n––––––––––––––––\n")
		for _, partition := range partitions {
			usage, err := disk.Usage(partition.Mountpoint)
			if err != nil {
				continue
			}
			fmt.Fprintf(&ri.builder, "%s\t%s used of %s (%.1f%%)\n",
				partition.Mountpoint, humanize.Bytes(usage.Used), humanize.Bytes(usage.Total), usage.UsedPercent)
		}
		ri.builder.WriteString("\n")
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))
	ri.builder.WriteString("Process Information\n–––––––––––––––––––\n")
	executable, _ := os.Executable()
	fmt.Fprintf(&ri.builder, "Executable:\t%s\n", filepath.Base(executable))
	fmt.Fprintf(&ri.builder, "PID:\t\t%d\n", os.Getpid())
	if wd, err := os.Getwd(); err == nil {
		fmt.Fprintf(&ri.builder, "Working Dir:\t%s\n", wd)
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		fmt.Fprintf(&ri.builder, "Memory RSS:\t%s\n", humanize.Bytes(memInfo.RSS))
	}
	ri.builder.WriteString("\n")

	ri.builder.WriteString("Runtime Information\n–––––––––––––––––––\n")
	fmt.Fprintf(&ri.builder, "Go Version:\t%s\n", runtime.Version())
	fmt.Fprintf(&ri.builder, "OS/Arch:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&ri.builder, "GOMAXPROCS:\t%d\n", runtime.GOMAXPROCS(0))
	fmt.Fprintf(&ri.builder, "Goroutines:\t%d\n\n", runtime.NumGoroutine())

	if bi, ok := debug.ReadBuildInfo(); ok {
		ri.builder.WriteString("Build Information\n–––––––––––––––––\n")
		fmt.Fprintf(&ri.builder, "Main Path:\t%s\n", bi.Path)
		if bi.Main.Version != "" {
			fmt.Fprintf(&ri.builder, "Main Version:\t%s\n", bi.Main.Version)
		}
		ri.builder.WriteString("\n")
	}

	ri.builder.WriteString("Garbage Collector\n–––––––––––––––––\n")
	fmt.Fprintf(&ri.builder, "GC Cycles:\t%d\n", memStats.NumGC)
	fmt.Fprintf(&ri.builder, "Next GC Target:\t%s\n", humanize.Bytes(memStats.NextGC))

	return ri.builder.String()
}
