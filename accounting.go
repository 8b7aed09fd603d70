package systemd

import (
	"context"
	"time"
)

// CPU accounting and control properties.
var (
	CPUAccounting      = Property[bool]{"CPUAccounting", Bool}
	CPUWeight          = Property[uint64]{"CPUWeight", Uint64}
	StartupCPUWeight   = Property[uint64]{"StartupCPUWeight", Uint64}
	CPUShares          = Property[uint64]{"CPUShares", Uint64}
	StartupCPUShares   = Property[uint64]{"StartupCPUShares", Uint64}
	CPUQuotaPerSecUSec = Property[time.Duration]{"CPUQuotaPerSecUSec", Microseconds}
	CPUUsageNSec       = Property[Limit]{"CPUUsageNSec", LimitValue}
)

// CPUSchema lists the CPU accounting properties.
var CPUSchema = Schema{CPUAccounting, CPUWeight, StartupCPUWeight, CPUShares, StartupCPUShares, CPUQuotaPerSecUSec, CPUUsageNSec}

// CPU is the CPU accounting and control capability of a unit.
type CPU struct{ iface Interface }

// Accounting reports whether CPU usage accounting is enabled.
func (c *CPU) Accounting(ctx context.Context) (bool, error) {
	return CPUAccounting.Get(ctx, c.iface)
}

// Weight returns the CPU weight of the unit's cgroup.
func (c *CPU) Weight(ctx context.Context) (uint64, error) {
	return CPUWeight.Get(ctx, c.iface)
}

// StartupWeight is Weight, while the system boots.
func (c *CPU) StartupWeight(ctx context.Context) (uint64, error) {
	return StartupCPUWeight.Get(ctx, c.iface)
}

// Shares returns the legacy cgroup v1 CPU shares.
func (c *CPU) Shares(ctx context.Context) (uint64, error) {
	return CPUShares.Get(ctx, c.iface)
}

// StartupShares is Shares, while the system boots.
func (c *CPU) StartupShares(ctx context.Context) (uint64, error) {
	return StartupCPUShares.Get(ctx, c.iface)
}

// QuotaPerSec returns the CPU time the unit may use per second of
// wall-clock time, or [Infinity] if unlimited.
func (c *CPU) QuotaPerSec(ctx context.Context) (time.Duration, error) {
	return CPUQuotaPerSecUSec.Get(ctx, c.iface)
}

// Usage returns the CPU time consumed by the unit, in nanoseconds. It
// is [Unlimited] if CPU accounting is disabled.
func (c *CPU) Usage(ctx context.Context) (Limit, error) {
	return CPUUsageNSec.Get(ctx, c.iface)
}

// Memory accounting and control properties.
var (
	MemoryAccounting = Property[bool]{"MemoryAccounting", Bool}
	MemoryCurrent    = Property[Limit]{"MemoryCurrent", LimitValue}
	MemoryMin        = Property[Limit]{"MemoryMin", LimitValue}
	MemoryLow        = Property[Limit]{"MemoryLow", LimitValue}
	MemoryHigh       = Property[Limit]{"MemoryHigh", LimitValue}
	MemoryMax        = Property[Limit]{"MemoryMax", LimitValue}
	MemorySwapMax    = Property[Limit]{"MemorySwapMax", LimitValue}
	MemoryLimit      = Property[Limit]{"MemoryLimit", LimitValue}
)

// MemorySchema lists the memory accounting properties.
var MemorySchema = Schema{MemoryAccounting, MemoryCurrent, MemoryMin, MemoryLow, MemoryHigh, MemoryMax, MemorySwapMax, MemoryLimit}

// Memory is the memory accounting and control capability of a unit.
type Memory struct{ iface Interface }

// Accounting reports whether memory accounting is enabled.
func (m *Memory) Accounting(ctx context.Context) (bool, error) {
	return MemoryAccounting.Get(ctx, m.iface)
}

// Current returns the unit's current memory usage in bytes, or
// [Unlimited] if memory accounting is disabled.
func (m *Memory) Current(ctx context.Context) (Limit, error) {
	return MemoryCurrent.Get(ctx, m.iface)
}

// Min returns the memory protected from reclaim.
func (m *Memory) Min(ctx context.Context) (Limit, error) {
	return MemoryMin.Get(ctx, m.iface)
}

// Low returns the memory protected from reclaim when possible.
func (m *Memory) Low(ctx context.Context) (Limit, error) {
	return MemoryLow.Get(ctx, m.iface)
}

// High returns the usage above which the cgroup is throttled.
func (m *Memory) High(ctx context.Context) (Limit, error) {
	return MemoryHigh.Get(ctx, m.iface)
}

// Max returns the hard memory limit.
func (m *Memory) Max(ctx context.Context) (Limit, error) {
	return MemoryMax.Get(ctx, m.iface)
}

// SwapMax returns the swap usage limit.
func (m *Memory) SwapMax(ctx context.Context) (Limit, error) {
	return MemorySwapMax.Get(ctx, m.iface)
}

// Limit returns the legacy cgroup v1 memory limit.
func (m *Memory) Limit(ctx context.Context) (Limit, error) {
	return MemoryLimit.Get(ctx, m.iface)
}

// IO accounting and control properties, for the unified cgroup
// hierarchy.
var (
	IOAccounting        = Property[bool]{"IOAccounting", Bool}
	IOWeight            = Property[uint64]{"IOWeight", Uint64}
	StartupIOWeight     = Property[uint64]{"StartupIOWeight", Uint64}
	IODeviceWeight      = Property[[]DeviceWeight]{"IODeviceWeight", Records(ParseDeviceWeight)}
	IOReadBandwidthMax  = Property[[]IOBandwidth]{"IOReadBandwidthMax", Records(ParseIOBandwidth)}
	IOWriteBandwidthMax = Property[[]IOBandwidth]{"IOWriteBandwidthMax", Records(ParseIOBandwidth)}
	IOReadIOPSMax       = Property[[]IOBandwidth]{"IOReadIOPSMax", Records(ParseIOBandwidth)}
	IOWriteIOPSMax      = Property[[]IOBandwidth]{"IOWriteIOPSMax", Records(ParseIOBandwidth)}
	IOReadBytes         = Property[Limit]{"IOReadBytes", LimitValue}
	IOWriteBytes        = Property[Limit]{"IOWriteBytes", LimitValue}
	IOReadOperations    = Property[Limit]{"IOReadOperations", LimitValue}
	IOWriteOperations   = Property[Limit]{"IOWriteOperations", LimitValue}
)

// IOSchema lists the IO accounting properties.
var IOSchema = Schema{
	IOAccounting, IOWeight, StartupIOWeight, IODeviceWeight,
	IOReadBandwidthMax, IOWriteBandwidthMax, IOReadIOPSMax, IOWriteIOPSMax,
	IOReadBytes, IOWriteBytes, IOReadOperations, IOWriteOperations,
}

// IO is the block IO accounting and control capability of a unit, on
// the unified cgroup hierarchy.
type IO struct{ iface Interface }

// Accounting reports whether IO accounting is enabled.
func (i *IO) Accounting(ctx context.Context) (bool, error) {
	return IOAccounting.Get(ctx, i.iface)
}

// Weight returns the default IO weight.
func (i *IO) Weight(ctx context.Context) (uint64, error) {
	return IOWeight.Get(ctx, i.iface)
}

// StartupWeight is Weight, while the system boots.
func (i *IO) StartupWeight(ctx context.Context) (uint64, error) {
	return StartupIOWeight.Get(ctx, i.iface)
}

// DeviceWeight returns the per-device IO weights.
func (i *IO) DeviceWeight(ctx context.Context) ([]DeviceWeight, error) {
	return IODeviceWeight.Get(ctx, i.iface)
}

// ReadBandwidthMax returns the per-device read limits, in bytes per
// second.
func (i *IO) ReadBandwidthMax(ctx context.Context) ([]IOBandwidth, error) {
	return IOReadBandwidthMax.Get(ctx, i.iface)
}

// WriteBandwidthMax returns the per-device write limits, in bytes per
// second.
func (i *IO) WriteBandwidthMax(ctx context.Context) ([]IOBandwidth, error) {
	return IOWriteBandwidthMax.Get(ctx, i.iface)
}

// ReadIOPSMax returns the per-device read limits, in operations per
// second.
func (i *IO) ReadIOPSMax(ctx context.Context) ([]IOBandwidth, error) {
	return IOReadIOPSMax.Get(ctx, i.iface)
}

// WriteIOPSMax returns the per-device write limits, in operations per
// second.
func (i *IO) WriteIOPSMax(ctx context.Context) ([]IOBandwidth, error) {
	return IOWriteIOPSMax.Get(ctx, i.iface)
}

// ReadBytes returns the number of bytes the unit has read from block
// devices, or [Unlimited] if IO accounting is disabled.
func (i *IO) ReadBytes(ctx context.Context) (Limit, error) {
	return IOReadBytes.Get(ctx, i.iface)
}

// WriteBytes returns the bytes written by the unit.
func (i *IO) WriteBytes(ctx context.Context) (Limit, error) {
	return IOWriteBytes.Get(ctx, i.iface)
}

// ReadOperations returns the read operations done by the unit.
func (i *IO) ReadOperations(ctx context.Context) (Limit, error) {
	return IOReadOperations.Get(ctx, i.iface)
}

// WriteOperations returns the write operations done by the unit.
func (i *IO) WriteOperations(ctx context.Context) (Limit, error) {
	return IOWriteOperations.Get(ctx, i.iface)
}

// Legacy cgroup v1 block IO properties.
var (
	BlockIOAccounting     = Property[bool]{"BlockIOAccounting", Bool}
	BlockIOWeight         = Property[uint64]{"BlockIOWeight", Uint64}
	StartupBlockIOWeight  = Property[uint64]{"StartupBlockIOWeight", Uint64}
	BlockIODeviceWeight   = Property[[]DeviceWeight]{"BlockIODeviceWeight", Records(ParseDeviceWeight)}
	BlockIOReadBandwidth  = Property[[]IOBandwidth]{"BlockIOReadBandwidth", Records(ParseIOBandwidth)}
	BlockIOWriteBandwidth = Property[[]IOBandwidth]{"BlockIOWriteBandwidth", Records(ParseIOBandwidth)}
)

// BlockIOSchema lists the legacy block IO properties.
var BlockIOSchema = Schema{BlockIOAccounting, BlockIOWeight, StartupBlockIOWeight, BlockIODeviceWeight, BlockIOReadBandwidth, BlockIOWriteBandwidth}

// BlockIO is the block IO capability of a unit on the legacy cgroup
// v1 hierarchy. Prefer [IO] on modern systems.
type BlockIO struct{ iface Interface }

// Accounting reports whether legacy block IO accounting is enabled.
func (b *BlockIO) Accounting(ctx context.Context) (bool, error) {
	return BlockIOAccounting.Get(ctx, b.iface)
}

// Weight returns the default block IO weight.
func (b *BlockIO) Weight(ctx context.Context) (uint64, error) {
	return BlockIOWeight.Get(ctx, b.iface)
}

// StartupWeight is Weight, while the system boots.
func (b *BlockIO) StartupWeight(ctx context.Context) (uint64, error) {
	return StartupBlockIOWeight.Get(ctx, b.iface)
}

// DeviceWeight returns the per-device block IO weights.
func (b *BlockIO) DeviceWeight(ctx context.Context) ([]DeviceWeight, error) {
	return BlockIODeviceWeight.Get(ctx, b.iface)
}

// ReadBandwidth returns the per-device read limits, in bytes per
// second.
func (b *BlockIO) ReadBandwidth(ctx context.Context) ([]IOBandwidth, error) {
	return BlockIOReadBandwidth.Get(ctx, b.iface)
}

// WriteBandwidth returns the per-device write limits, in bytes per
// second.
func (b *BlockIO) WriteBandwidth(ctx context.Context) ([]IOBandwidth, error) {
	return BlockIOWriteBandwidth.Get(ctx, b.iface)
}

// Tasks accounting and control properties.
var (
	TasksAccounting = Property[bool]{"TasksAccounting", Bool}
	TasksCurrent    = Property[Limit]{"TasksCurrent", LimitValue}
	TasksMax        = Property[Limit]{"TasksMax", LimitValue}
)

// TasksSchema lists the tasks accounting properties.
var TasksSchema = Schema{TasksAccounting, TasksCurrent, TasksMax}

// Tasks is the task count accounting and control capability of a
// unit.
type Tasks struct{ iface Interface }

// Accounting reports whether task accounting is enabled.
func (t *Tasks) Accounting(ctx context.Context) (bool, error) {
	return TasksAccounting.Get(ctx, t.iface)
}

// Current returns the number of tasks in the unit, or [Unlimited] if
// tasks accounting is disabled.
func (t *Tasks) Current(ctx context.Context) (Limit, error) {
	return TasksCurrent.Get(ctx, t.iface)
}

// Max returns the maximum number of tasks in the cgroup.
func (t *Tasks) Max(ctx context.Context) (Limit, error) {
	return TasksMax.Get(ctx, t.iface)
}

// IP accounting and access control properties.
var (
	IPAccounting     = Property[bool]{"IPAccounting", Bool}
	IPAddressAllow   = Property[[]IPAddressRule]{"IPAddressAllow", Records(ParseIPAddressRule)}
	IPAddressDeny    = Property[[]IPAddressRule]{"IPAddressDeny", Records(ParseIPAddressRule)}
	IPIngressBytes   = Property[Limit]{"IPIngressBytes", LimitValue}
	IPIngressPackets = Property[Limit]{"IPIngressPackets", LimitValue}
	IPEgressBytes    = Property[Limit]{"IPEgressBytes", LimitValue}
	IPEgressPackets  = Property[Limit]{"IPEgressPackets", LimitValue}
)

// IPSchema lists the IP accounting properties.
var IPSchema = Schema{IPAccounting, IPAddressAllow, IPAddressDeny, IPIngressBytes, IPIngressPackets, IPEgressBytes, IPEgressPackets}

// IP is the network accounting and access control capability of a
// unit.
type IP struct{ iface Interface }

// Accounting reports whether IP traffic accounting is enabled.
func (p *IP) Accounting(ctx context.Context) (bool, error) {
	return IPAccounting.Get(ctx, p.iface)
}

// AddressAllow returns the address ranges the unit may talk to.
func (p *IP) AddressAllow(ctx context.Context) ([]IPAddressRule, error) {
	return IPAddressAllow.Get(ctx, p.iface)
}

// AddressDeny returns the address ranges the unit may not talk to,
// unless allowed by AddressAllow.
func (p *IP) AddressDeny(ctx context.Context) ([]IPAddressRule, error) {
	return IPAddressDeny.Get(ctx, p.iface)
}

// IngressBytes returns the bytes received by the unit.
func (p *IP) IngressBytes(ctx context.Context) (Limit, error) {
	return IPIngressBytes.Get(ctx, p.iface)
}

// IngressPackets returns the packets received by the unit.
func (p *IP) IngressPackets(ctx context.Context) (Limit, error) {
	return IPIngressPackets.Get(ctx, p.iface)
}

// EgressBytes returns the bytes sent by the unit.
func (p *IP) EgressBytes(ctx context.Context) (Limit, error) {
	return IPEgressBytes.Get(ctx, p.iface)
}

// EgressPackets returns the packets sent by the unit.
func (p *IP) EgressPackets(ctx context.Context) (Limit, error) {
	return IPEgressPackets.Get(ctx, p.iface)
}

// Accounting is the set of resource accounting capabilities of a
// unit. Capabilities that the unit's type does not carry are nil.
type Accounting struct {
	CPU     *CPU
	Memory  *Memory
	IO      *IO
	BlockIO *BlockIO
	Tasks   *Tasks
	IP      *IP
}

// fullAccounting returns an Accounting with every capability, read
// from iface.
func fullAccounting(iface Interface) Accounting {
	return Accounting{
		CPU:     &CPU{iface},
		Memory:  &Memory{iface},
		IO:      &IO{iface},
		BlockIO: &BlockIO{iface},
		Tasks:   &Tasks{iface},
		IP:      &IP{iface},
	}
}

// Schema returns the properties of the capabilities present in a.
func (a Accounting) Schema() Schema {
	var ret Schema
	if a.CPU != nil {
		ret = append(ret, CPUSchema...)
	}
	if a.Memory != nil {
		ret = append(ret, MemorySchema...)
	}
	if a.IO != nil {
		ret = append(ret, IOSchema...)
	}
	if a.BlockIO != nil {
		ret = append(ret, BlockIOSchema...)
	}
	if a.Tasks != nil {
		ret = append(ret, TasksSchema...)
	}
	if a.IP != nil {
		ret = append(ret, IPSchema...)
	}
	return ret
}

// Control group properties.
var (
	ControlGroup        = Property[string]{"ControlGroup", String}
	Slice               = Property[string]{"Slice", String}
	Delegate            = Property[bool]{"Delegate", Bool}
	DelegateControllers = Property[[]string]{"DelegateControllers", Strings}
	DeviceAllow         = Property[[]DeviceRule]{"DeviceAllow", Records(ParseDeviceRule)}
	DevicePolicy        = Property[string]{"DevicePolicy", String}
)

// CgroupSchema lists the control group properties.
var CgroupSchema = Schema{ControlGroup, Slice, Delegate, DelegateControllers, DeviceAllow, DevicePolicy}

// Cgroup is the control group of a unit.
type Cgroup struct{ iface Interface }

// Path returns the unit's control group path, relative to the cgroup
// filesystem root, or "" if the unit has no running processes.
func (c Cgroup) Path(ctx context.Context) (string, error) {
	return ControlGroup.Get(ctx, c.iface)
}

// Slice returns the name of the slice unit that contains the unit.
func (c Cgroup) Slice(ctx context.Context) (string, error) {
	return Slice.Get(ctx, c.iface)
}

// Delegate reports whether the cgroup subtree is delegated to the
// unit's processes.
func (c Cgroup) Delegate(ctx context.Context) (bool, error) {
	return Delegate.Get(ctx, c.iface)
}

// DelegateControllers returns the controllers enabled in a delegated
// subtree.
func (c Cgroup) DelegateControllers(ctx context.Context) ([]string, error) {
	return DelegateControllers.Get(ctx, c.iface)
}

// DeviceAllow returns the device nodes the unit may access.
func (c Cgroup) DeviceAllow(ctx context.Context) ([]DeviceRule, error) {
	return DeviceAllow.Get(ctx, c.iface)
}

// DevicePolicy returns "auto", "closed" or "strict".
func (c Cgroup) DevicePolicy(ctx context.Context) (string, error) {
	return DevicePolicy.Get(ctx, c.iface)
}
