// Package flux resolves a physical flux-transition capture (SCP,
// KryoFlux, MFI-style raw timings) into a synchronised bitcell stream
// using a single-pole phase-locked loop, with RPM normalisation and
// histogram-based density detection.
package flux

// PLL tuning constants, carried from the teacher's SCP-derived decoder.
const (
	// ClockMaxAdjPct is the +/- adjustment range (90%-110% of the ideal
	// period).
	ClockMaxAdjPct = 10
	// PeriodAdjPct is the period adjustment percentage applied per
	// transition while in sync.
	PeriodAdjPct = 5
	// PhaseAdjPct is the phase adjustment percentage: 100% would snap
	// the timing window straight to the observed flux interval.
	PhaseAdjPct = 60
)

// Source supplies successive flux intervals, in nanoseconds, until
// exhausted (NextFlux returns 0 once the capture is consumed).
type Source interface {
	NextFlux() uint64
}

// SliceSource adapts a slice of flux intervals (nanoseconds between
// successive transitions) into a Source.
type SliceSource struct {
	transitions []uint64
	index       int
}

// NewSliceSource wraps a slice of flux intervals.
func NewSliceSource(transitions []uint64) *SliceSource {
	return &SliceSource{transitions: transitions}
}

// NextFlux implements Source.
func (s *SliceSource) NextFlux() uint64 {
	if s.index >= len(s.transitions) {
		return 0
	}
	interval := s.transitions[s.index]
	s.index++
	return interval
}

// Done reports whether every transition has been consumed.
func (s *SliceSource) Done() bool {
	return s.index >= len(s.transitions)
}

// PLL decodes flux transitions into bits using a single-pole,
// SCP-style phase-locked loop. Grounded on the teacher's pll.Decoder,
// generalized to accept any flux.Source (not just a pre-built slice).
type PLL struct {
	PeriodIdeal  float64 // Expected clock period in nanoseconds
	Period       float64 // Current clock period in nanoseconds
	Flux         float64 // Accumulated flux time in nanoseconds
	Time         float64 // Total time elapsed in nanoseconds
	ClockedZeros int     // Count of consecutive clocked zeros

	src Source
}

// NewPLL creates a PLL targeting bitRateKHz (e.g. 250 for standard MFM
// double density), reading flux intervals from src.
func NewPLL(src Source, bitRateKHz float64) *PLL {
	period := 1e6 / bitRateKHz / 2
	return &PLL{
		PeriodIdeal: period,
		Period:      period,
		src:         src,
	}
}

// NextBit decodes and returns the next bit from the flux stream: false
// for a clocked zero, true when a flux transition landed in this
// bitcell.
func (p *PLL) NextBit() bool {
	for p.Flux < p.Period/2 {
		interval := p.src.NextFlux()
		if interval == 0 {
			p.ClockedZeros++
			return false
		}
		p.Flux += float64(interval)
	}

	p.Time += p.Period
	p.Flux -= p.Period

	if p.Flux >= p.Period/2 {
		p.ClockedZeros++
		return false
	}

	if p.ClockedZeros <= 3 {
		p.Period += p.Flux * PeriodAdjPct / 100
	} else {
		p.Period += (p.PeriodIdeal - p.Period) * PeriodAdjPct / 100
	}

	pMin := p.PeriodIdeal * (100 - ClockMaxAdjPct) / 100
	if p.Period < pMin {
		p.Period = pMin
	}
	pMax := p.PeriodIdeal * (100 + ClockMaxAdjPct) / 100
	if p.Period > pMax {
		p.Period = pMax
	}

	newFlux := p.Flux * (100 - PhaseAdjPct) / 100
	p.Time += p.Flux - newFlux
	p.Flux = newFlux

	p.ClockedZeros = 0
	return true
}

// DecodeRevolution runs the PLL to exhaustion over one revolution's
// flux intervals and returns the resulting bitcell stream as a packed,
// MSB-first byte slice plus the exact bit count produced.
func DecodeRevolution(intervals []uint64, bitRateKHz float64) (bits []byte, bitCount int) {
	src := NewSliceSource(intervals)
	pll := NewPLL(src, bitRateKHz)

	var out []bool
	for {
		out = append(out, pll.NextBit())
		if src.Done() {
			break
		}
	}

	packed := make([]byte, (len(out)+7)/8)
	for i, bit := range out {
		if bit {
			packed[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return packed, len(out)
}

// Density classifies a track by its base (2T) bitcell period.
type Density int

const (
	DensityUnknown Density = iota
	DensityStandard         // FM, 125 kbps, 2T clock <= 4.8us
	DensityDouble           // MFM, 250 kbps, 2T clock <= 2.4us
	DensityHigh             // MFM, 500 kbps, 2T clock <= 1.2us
)

func (d Density) String() string {
	switch d {
	case DensityStandard:
		return "Standard"
	case DensityDouble:
		return "Double"
	case DensityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Histogram bins flux intervals at 20ns resolution to find the base 2T
// clock period and classify track density, per spec.md §4.3.
type Histogram struct {
	bins map[int]int // bin index (20ns units) -> occurrence count
}

const histogramBinNs = 20

// NewHistogram builds a histogram over a set of flux intervals
// (nanoseconds).
func NewHistogram(intervals []uint64) *Histogram {
	h := &Histogram{bins: make(map[int]int)}
	for _, iv := range intervals {
		bin := int(iv / histogramBinNs)
		h.bins[bin]++
	}
	return h
}

// Peaks returns the bin indices (in 20ns units) of the n strongest
// peaks, ascending by bin value (shortest interval first).
func (h *Histogram) Peaks(n int) []int {
	type binCount struct {
		bin   int
		count int
	}
	all := make([]binCount, 0, len(h.bins))
	for b, c := range h.bins {
		all = append(all, binCount{b, c})
	}
	// Selection sort by count descending, limited to n: histograms here
	// have at most a few hundred distinct bins, so O(n*len) is fine.
	top := make([]binCount, 0, n)
	used := make(map[int]bool)
	for len(top) < n && len(top) < len(all) {
		bestIdx := -1
		for i, bc := range all {
			if used[i] {
				continue
			}
			if bestIdx == -1 || bc.count > all[bestIdx].count {
				bestIdx = i
			}
		}
		used[bestIdx] = true
		top = append(top, all[bestIdx])
	}
	bins := make([]int, len(top))
	for i, bc := range top {
		bins[i] = bc.bin
	}
	// Ascending by bin (shortest period first), so the base 2T clock is
	// bins[0].
	for i := 1; i < len(bins); i++ {
		for j := i; j > 0 && bins[j] < bins[j-1]; j-- {
			bins[j], bins[j-1] = bins[j-1], bins[j]
		}
	}
	return bins
}

// DetectDensity finds the three strongest histogram peaks, takes the
// smallest as the base 2T clock, and classifies track density.
func (h *Histogram) DetectDensity() (clockNs int, density Density) {
	peaks := h.Peaks(3)
	if len(peaks) == 0 {
		return 0, DensityUnknown
	}
	clockNs = peaks[0] * histogramBinNs

	switch {
	case clockNs <= 1200:
		return clockNs, DensityHigh
	case clockNs <= 2400:
		return clockNs, DensityDouble
	case clockNs <= 4800:
		return clockNs, DensityStandard
	default:
		return clockNs, DensityUnknown
	}
}

// NormalizeRPM scales every flux interval by 300/detectedRPM when the
// ratio detectedRPM/300 lies strictly between 0.9 and 1.1, i.e. the
// revolution is within 10% of the 300 RPM (200ms) nominal, per spec.md
// §4.3; outside that range the intervals are returned unchanged.
// detectedRPM is derived by the caller, for example from a known index
// time (SCP, MFI) via DetectRPMFromIndexTime.
func NormalizeRPM(intervals []uint64, detectedRPM float64) []uint64 {
	ratio := detectedRPM / 300.0
	if ratio <= 0.9 || ratio >= 1.1 {
		// Outside drift range: treat as a genuinely different nominal
		// rotation speed (e.g. a 360 RPM drive), not measurement jitter
		// to correct for.
		return intervals
	}
	scale := 300.0 / detectedRPM
	out := make([]uint64, len(intervals))
	for i, iv := range intervals {
		out[i] = uint64(float64(iv) * scale)
	}
	return out
}

// DetectRPMFromIndexTime derives RPM directly from a measured
// index-to-index revolution time in nanoseconds: RPM = 60e9 / periodNs.
func DetectRPMFromIndexTime(periodNs uint64) float64 {
	if periodNs == 0 {
		return 300
	}
	return 60e9 / float64(periodNs)
}

// MaterializeTrack concatenates decoded bits from the selected
// revolution(s) into a single bit-packed byte slice suitable for
// mfm.NewCodec / fm.NewCodec, per spec.md §4.3's "revolution-to-track
// materialisation". The default policy (selected by the caller) is the
// longest clean revolution; this function performs the concatenation
// once the caller has picked which revolutions to include.
func MaterializeTrack(revolutions [][]byte, bitCounts []int) (data []byte, totalBits int) {
	for _, n := range bitCounts {
		totalBits += n
	}
	data = make([]byte, (totalBits+7)/8)
	destBit := 0
	for ri, rev := range revolutions {
		for bi := 0; bi < bitCounts[ri]; bi++ {
			byteIdx := bi / 8
			bitIdx := 7 - uint(bi%8)
			if byteIdx >= len(rev) {
				break
			}
			bit := (rev[byteIdx]>>bitIdx)&1 != 0
			if bit {
				data[destBit/8] |= 1 << (7 - uint(destBit%8))
			}
			destBit++
		}
	}
	return data, totalBits
}
