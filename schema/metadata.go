package schema

// ElementKind is the structural classification of a scanned track
// element. Unlike VisualKind, it does not fold in error/deleted state.
type ElementKind int

const (
	ElementNull ElementKind = iota
	ElementMarker
	ElementSectorHeader
	ElementSectorData
)

// VisualKind is the generic, error-aware bucket a track element falls
// into for cross-schema consumers (visualisation, coarse analysis)
// that don't know a particular schema's marker vocabulary. Grounded on
// the teacher-independent `GenericTrackElement` mapping every concrete
// schema element type is reduced to.
type VisualKind int

const (
	VisualNull VisualKind = iota
	VisualMarker
	VisualSectorHeader
	VisualSectorBadHeader
	VisualSectorData
	VisualSectorBadData
	VisualSectorDeletedData
	VisualSectorBadDeletedData
)

// MarkerItem is one scanned address mark: a schema-specific tag (e.g.
// "IDAM") and the bit index of its first bit.
type MarkerItem struct {
	Tag   string
	Start int
}

// ElementInstance is one scanned, decoded track-metadata element.
// Fields not relevant to Kind are left zero; Go has no tagged-union
// type, so the SectorHeader/SectorData/Marker element kinds of spec.md
// §3 are flattened into one struct distinguished by Kind.
type ElementInstance struct {
	Kind       ElementKind
	Start, End int
	Chsn       DiskChsn

	MarkerTag string // set when Kind == ElementMarker

	AddressError bool // SectorHeader/SectorData: header CRC failed
	DataError    bool // SectorData: data CRC failed
	DataMissing  bool // SectorHeader: no DAM/DDAM ever followed
	Deleted      bool // SectorData: found under a DDAM, not a DAM

	LastSector bool // set on the final element of a scan
}

// Size returns the element's on-disk byte length: 4 for a marker, 10
// for a sector header (IDAM + CHSN + CRC), or 4 + 2 + the sector's
// data size for sector data (mark + payload + CRC).
func (e ElementInstance) Size() int {
	switch e.Kind {
	case ElementMarker:
		return 4
	case ElementSectorHeader:
		return 4 + 4 + 2
	case ElementSectorData:
		return 4 + 2 + e.Chsn.SizeBytes()
	default:
		return 0
	}
}

// Range returns the byte sub-range of a decode buffer covering this
// element that the requested scope asks for, e.g. DataOnly on a
// SectorData element skips its 4-byte mark and trailing 2-byte CRC.
// Kinds and scopes with no special-cased sub-range span the element's
// entire Size.
func (e ElementInstance) Range(scope RwScope) (start, end int) {
	size := e.Size()
	switch {
	case e.Kind == ElementSectorData && scope == ScopeDataOnly:
		return 4, size - 2
	case (e.Kind == ElementSectorData || e.Kind == ElementSectorHeader) && scope == ScopeCrcOnly:
		return size - 2, size
	default:
		return 0, size
	}
}

// Visual classifies an element into its generic, error-aware bucket.
func (e ElementInstance) Visual() VisualKind {
	switch e.Kind {
	case ElementMarker:
		return VisualMarker
	case ElementSectorHeader:
		if e.AddressError {
			return VisualSectorBadHeader
		}
		return VisualSectorHeader
	case ElementSectorData:
		bad := e.AddressError || e.DataError
		switch {
		case bad && e.Deleted:
			return VisualSectorBadDeletedData
		case bad:
			return VisualSectorBadData
		case e.Deleted:
			return VisualSectorDeletedData
		default:
			return VisualSectorData
		}
	default:
		return VisualNull
	}
}

// Metadata holds the flat, start-bit-ordered element stream produced
// by a schema scan.
type Metadata struct {
	Elements []ElementInstance
}

// SectorIDs returns the CHSN of every sector header element, in scan
// order.
func (m *Metadata) SectorIDs() []DiskChsn {
	var out []DiskChsn
	for _, e := range m.Elements {
		if e.Kind == ElementSectorHeader {
			out = append(out, e.Chsn)
		}
	}
	return out
}

// Analysis aggregates consistency facts about a track's scanned
// metadata: variable sector sizes, nonconsecutive sector numbering,
// and any CRC/missing-DAM problems seen anywhere on the track.
type Analysis struct {
	SectorCount           int
	ConsistentSectorSize  *uint8
	NonconsecutiveSectors bool
	AddressError          bool
	DataError             bool
	DeletedData           bool
	NoDAM                 bool
}

// Analyze computes an Analysis from a scanned Metadata stream.
func Analyze(m *Metadata) Analysis {
	var a Analysis
	sectorIDs := m.SectorIDs()
	a.SectorCount = len(sectorIDs)

	nSet := make(map[uint8]bool)
	var lastN uint8
	for si, id := range sectorIDs {
		if id.Sector != uint8(si+1) {
			a.NonconsecutiveSectors = true
		}
		lastN = id.N
		nSet[id.N] = true
	}
	if len(nSet) == 1 {
		n := lastN
		a.ConsistentSectorSize = &n
	}

	for _, e := range m.Elements {
		switch e.Kind {
		case ElementSectorData:
			if e.AddressError {
				a.AddressError = true
			}
			if e.DataError {
				a.DataError = true
			}
			if e.Deleted {
				a.DeletedData = true
			}
		case ElementSectorHeader:
			if e.AddressError {
				a.AddressError = true
			}
			if e.DataMissing {
				a.NoDAM = true
			}
		}
	}
	return a
}

// SectorScanResult is the result of searching scanned track metadata
// for a sector matching a query. On a miss, the WrongCylinder/
// BadCylinder/WrongHead flags distinguish "no such sector anywhere" from
// "this sector number exists, but under a different cylinder/head" —
// used by higher layers to report more useful errors than a bare
// not-found.
type SectorScanResult struct {
	Found bool

	ElementIndex int
	Chsn         DiskChsn
	AddressError bool
	DataError    bool
	DeletedMark  bool
	NoDAM        bool
	LastSector   bool

	WrongCylinder bool
	BadCylinder   bool
	WrongHead     bool
}

// FindSectorElement scans elements (in start-bit order, starting from
// index) for the sector matching id. It is schema-agnostic: it only
// reads the generic ElementInstance fields, so any schema's scan
// output can be searched the same way.
func FindSectorElement(id SectorIdQuery, elements []ElementInstance, index int) SectorScanResult {
	var wrongCylinder, badCylinder, wrongHead, lastIdamMatched bool

	for ei, inst := range elements {
		if inst.Start < index {
			continue
		}

		switch inst.Kind {
		case ElementSectorHeader:
			if inst.Chsn.Sector != id.S() {
				continue
			}
			if inst.Chsn.Cylinder == 0xFF {
				badCylinder = true
			}
			if id.Cylinder != nil && inst.Chsn.Cylinder != *id.Cylinder {
				wrongCylinder = true
			}
			if id.Head != nil && inst.Chsn.Head != *id.Head {
				wrongHead = true
			}
			lastIdamMatched = id.Matches(inst.Chsn)

			if inst.AddressError || inst.DataMissing {
				return SectorScanResult{
					Found:        true,
					ElementIndex: ei,
					Chsn:         inst.Chsn,
					AddressError: inst.AddressError,
					NoDAM:        inst.DataMissing,
					LastSector:   inst.LastSector,
				}
			}
		case ElementSectorData:
			if lastIdamMatched {
				return SectorScanResult{
					Found:        true,
					ElementIndex: ei,
					Chsn:         inst.Chsn,
					AddressError: inst.AddressError,
					DataError:    inst.DataError,
					DeletedMark:  inst.Deleted,
					LastSector:   inst.LastSector,
				}
			}
		}
	}

	return SectorScanResult{
		WrongCylinder: wrongCylinder,
		BadCylinder:   badCylinder,
		WrongHead:     wrongHead,
	}
}
