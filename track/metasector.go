package track

import (
	"crypto/sha1"
	"math/rand/v2"

	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
)

// metaMask is a byte mask (one mask byte per data byte, each bit of
// the mask byte marking one unstable/absent bit of the matching data
// byte) plus a cached "any bit set" flag.
type metaMask struct {
	hasBits bool
	mask    []byte
}

func newMetaMask(length int) metaMask {
	return metaMask{mask: make([]byte, length)}
}

func metaMaskFrom(mask []byte) metaMask {
	m := metaMask{mask: append([]byte(nil), mask...)}
	m.hasBits = anyNonZero(m.mask)
	return m
}

func (m *metaMask) orSlice(src []byte) {
	for i, b := range src {
		if i >= len(m.mask) {
			break
		}
		m.mask[i] |= b
	}
	m.hasBits = anyNonZero(m.mask)
}

func anyNonZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

// metaSector is one whole-sector record: its identity, its data, and
// the weak/hole bit masks applied over it at read time.
type metaSector struct {
	idChsn          schema.DiskChsn
	addressCRCError bool
	dataCRCError    bool
	deletedMark     bool
	noDAM           bool
	data            []byte
	weakMask        metaMask
	holeMask        metaMask
}

// readData returns the sector's data with its weak and hole masks
// applied: a masked bit is replaced with a freshly randomized one on
// every read, modeling a flux region whose actual value genuinely
// varies (weak) or was never recorded at all (a hole punched in the
// media). A sector with no DAM carries no data to read.
func (s *metaSector) readData() []byte {
	if s.noDAM {
		return nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	for i := range out {
		maskByte := s.weakMask.mask[i] | s.holeMask.mask[i]
		if maskByte == 0 {
			continue
		}
		randByte := byte(rand.IntN(256))
		out[i] = out[i]&^maskByte | randByte&maskByte
	}
	return out
}

// sectorMatch is the result of filtering metaSectorTrack.sectors
// against a query: the matching sectors plus the wrong-cylinder/bad-
// cylinder/wrong-head flags a miss (or a match against the wrong
// cylinder/head) should report.
type sectorMatch struct {
	sectors       []*metaSector
	wrongCylinder bool
	badCylinder   bool
	wrongHead     bool
}

// MetaSectorTrack is a track stored as a flat list of whole sectors,
// with no underlying bitstream at all: each sector's data, deleted
// mark, and CRC validity are recorded directly rather than derived
// from decoding an encoded track. Used for formats (e.g. IMG/IMA raw
// sector dumps) with no flux or bitstream information to preserve.
type MetaSectorTrack struct {
	ch       schema.DiskCh
	encoding schema.Encoding
	dataRate DataRate
	sectors  []metaSector
}

var _ Track = (*MetaSectorTrack)(nil)

// NewMetaSectorTrack returns an empty meta-sector track; sectors are
// added one at a time with AddSector.
func NewMetaSectorTrack(ch schema.DiskCh, encoding schema.Encoding, dataRate DataRate) *MetaSectorTrack {
	return &MetaSectorTrack{ch: ch, encoding: encoding, dataRate: dataRate}
}

func (t *MetaSectorTrack) Resolution() DataResolution { return ResolutionMetaSector }
func (t *MetaSectorTrack) Ch() schema.DiskCh           { return t.ch }
func (t *MetaSectorTrack) SetCh(ch schema.DiskCh)      { t.ch = ch }
func (t *MetaSectorTrack) Encoding() schema.Encoding   { return t.encoding }

// Metadata returns nil: a meta-sector track has no scanned element
// stream, since it was never decoded from a bitstream in the first
// place.
func (t *MetaSectorTrack) Metadata() *schema.Metadata { return nil }

// RawBytes always returns nil: a meta-sector track has no raw
// bitstream, only a flat list of whole-sector records.
func (t *MetaSectorTrack) RawBytes() []byte { return nil }

func (t *MetaSectorTrack) Info() Info {
	return Info{
		Resolution: ResolutionMetaSector,
		Encoding:   t.encoding,
		DataRate:   t.dataRate,
		Density:    t.dataRate.Density,
		SectorCt:   len(t.sectors),
	}
}

func (t *MetaSectorTrack) SectorCount() int { return len(t.sectors) }

func (t *MetaSectorTrack) HasSectorID(id uint8) bool {
	for _, s := range t.sectors {
		if s.idChsn.Sector == id {
			return true
		}
	}
	return false
}

func (t *MetaSectorTrack) SectorList() []SectorMapEntry {
	out := make([]SectorMapEntry, 0, len(t.sectors))
	for _, s := range t.sectors {
		out = append(out, SectorMapEntry{
			Chsn: s.idChsn,
			Attributes: SectorAttributes{
				AddressCRCValid: !s.addressCRCError,
				DataCRCValid:    !s.dataCRCError,
				DeletedMark:     s.deletedMark,
			},
		})
	}
	return out
}

func (t *MetaSectorTrack) HasWeakBits() bool {
	for _, s := range t.sectors {
		if s.weakMask.hasBits {
			return true
		}
	}
	return false
}

// AddSector appends sd as a new sector, or, when alternate is set and
// a sector with the same CHSN already exists, instead folds it into
// that sector as an inferred weak-bit region: the two copies are XORed
// together, and every bit where they differ is marked weak. This
// models recovering a weak sector by comparing multiple read
// revolutions of the same physical sector.
func (t *MetaSectorTrack) AddSector(sd SectorDescriptor, alternate bool) error {
	weakMask := newMetaMask(len(sd.Data))
	if len(sd.WeakMask) > 0 {
		weakMask = metaMaskFrom(sd.WeakMask)
	}
	holeMask := newMetaMask(len(sd.Data))
	if len(sd.HoleMask) > 0 {
		holeMask = metaMaskFrom(sd.HoleMask)
	}

	newSector := metaSector{
		idChsn:          sd.IDChsn,
		addressCRCError: !sd.Attributes.AddressCRCValid,
		dataCRCError:    !sd.Attributes.DataCRCValid,
		deletedMark:     sd.Attributes.DeletedMark,
		noDAM:           sd.Attributes.NoDAM,
		data:            append([]byte(nil), sd.Data...),
		weakMask:        weakMask,
		holeMask:        holeMask,
	}

	if alternate {
		for i := range t.sectors {
			existing := &t.sectors[i]
			if existing.idChsn != sd.IDChsn {
				continue
			}
			xor := make([]byte, len(existing.data))
			for j := range xor {
				if j < len(newSector.data) {
					xor[j] = newSector.data[j] ^ existing.data[j]
				}
			}
			existing.weakMask.orSlice(xor)
			return nil
		}
	}

	t.sectors = append(t.sectors, newSector)
	return nil
}

// matchSectors filters t.sectors against id, reporting the wrong-
// cylinder/bad-cylinder/wrong-head flags encountered along the way
// regardless of whether anything actually matched.
func (t *MetaSectorTrack) matchSectors(id schema.SectorIdQuery) sectorMatch {
	var m sectorMatch
	for i := range t.sectors {
		s := &t.sectors[i]
		if id.Cylinder != nil && s.idChsn.Cylinder != *id.Cylinder {
			m.wrongCylinder = true
		}
		if s.idChsn.Cylinder == 0xFF {
			m.badCylinder = true
		}
		if id.Head != nil && s.idChsn.Head != *id.Head {
			m.wrongHead = true
		}
		if id.Matches(s.idChsn) {
			m.sectors = append(m.sectors, s)
		}
	}
	return m
}

// ReadSector returns a matching sector's data with its weak/hole masks
// applied. Only schema.ScopeDataOnly is meaningful for a meta-sector
// track, since it stores no address mark or CRC bytes to include under
// any other scope. overrideN and offset are accepted for interface
// parity but unused: a meta-sector track has no bitstream position to
// offset into, and its sector sizes come only from what was stored.
func (t *MetaSectorTrack) ReadSector(id schema.SectorIdQuery, overrideN *uint8, offset int, scope schema.RwScope, debug bool) (ReadSectorResult, error) {
	if scope != schema.ScopeDataOnly && scope != schema.ScopeEntireElement {
		return ReadSectorResult{}, ErrParameter
	}

	m := t.matchSectors(id)
	if len(m.sectors) == 0 {
		return ReadSectorResult{
			NotFound:      true,
			WrongCylinder: m.wrongCylinder,
			BadCylinder:   m.badCylinder,
			WrongHead:     m.wrongHead,
		}, nil
	}

	s := m.sectors[0]
	chsn := s.idChsn
	return ReadSectorResult{
		IDChsn:        &chsn,
		ReadBuf:       s.readData(),
		DeletedMark:   s.deletedMark,
		AddressError:  s.addressCRCError,
		DataError:     s.dataCRCError,
		WrongCylinder: m.wrongCylinder,
		BadCylinder:   m.badCylinder,
		WrongHead:     m.wrongHead,
	}, nil
}

// ScanSector locates a matching sector without reading its data.
func (t *MetaSectorTrack) ScanSector(id schema.SectorIdQuery, offset int) (ScanSectorResult, error) {
	m := t.matchSectors(id)
	if len(m.sectors) == 0 {
		return ScanSectorResult{
			WrongCylinder: m.wrongCylinder,
			BadCylinder:   m.badCylinder,
			WrongHead:     m.wrongHead,
		}, nil
	}
	s := m.sectors[0]
	return ScanSectorResult{
		Found:         true,
		Chsn:          s.idChsn,
		AddressError:  s.addressCRCError,
		DataError:     s.dataCRCError,
		DeletedMark:   s.deletedMark,
		WrongCylinder: m.wrongCylinder,
		BadCylinder:   m.badCylinder,
		WrongHead:     m.wrongHead,
	}, nil
}

// WriteSector overwrites a matching sector's data in place. A sector
// with no DAM or a bad address CRC is left untouched, since there is
// nowhere meaningful to write its data to. A query that matches more
// than one sector (possible on a corrupt or hand-built track with
// duplicate CHSNs) is rejected, since there would be no way to choose
// which one the caller meant.
func (t *MetaSectorTrack) WriteSector(id schema.SectorIdQuery, offset int, data []byte, scope schema.RwScope, writeDeleted, debug bool) (WriteSectorResult, error) {
	m := t.matchSectors(id)
	if len(m.sectors) > 1 {
		return WriteSectorResult{}, ErrParameter
	}
	if len(m.sectors) == 0 {
		return WriteSectorResult{
			WrongCylinder: m.wrongCylinder,
			BadCylinder:   m.badCylinder,
			WrongHead:     m.wrongHead,
		}, nil
	}

	s := m.sectors[0]
	if s.idChsn.SizeBytes() != len(data) {
		return WriteSectorResult{}, ErrParameter
	}

	if !s.noDAM && !s.addressCRCError {
		copy(s.data, data)
		s.deletedMark = writeDeleted
	}

	return WriteSectorResult{
		NoDAM:         s.noDAM,
		AddressError:  s.addressCRCError,
		WrongCylinder: m.wrongCylinder,
		BadCylinder:   m.badCylinder,
		WrongHead:     m.wrongHead,
	}, nil
}

func (t *MetaSectorTrack) RecalculateSectorCRC(id schema.SectorIdQuery, offset int) error {
	rr, err := t.ReadSector(id, nil, offset, schema.ScopeDataOnly, false)
	if err != nil {
		return err
	}
	_, err = t.WriteSector(id, offset, rr.ReadBuf, schema.ScopeDataOnly, rr.DeletedMark, false)
	return err
}

// ReadAllSectors concatenates every sector's data in storage order,
// stopping once eot sectors have been read. n sizes the output
// buffer's initial capacity only; each sector contributes its own
// actual stored length regardless of n.
func (t *MetaSectorTrack) ReadAllSectors(n, eot uint8) (ReadTrackResult, error) {
	capHint := schema.NSize(n) * len(t.sectors)
	trackBuf := make([]byte, 0, capHint)

	var addressError, dataError, deletedMark bool
	notFound := true
	var sectorsRead uint16

	for i := range t.sectors {
		s := &t.sectors[i]
		notFound = false

		if sectorsRead >= uint16(eot) {
			break
		}

		trackBuf = append(trackBuf, s.readData()...)
		sectorsRead++

		addressError = addressError || s.addressCRCError
		dataError = dataError || s.dataCRCError
		deletedMark = deletedMark || s.deletedMark
	}

	return ReadTrackResult{
		NotFound:     notFound,
		SectorsRead:  sectorsRead,
		ReadBuf:      trackBuf,
		DeletedMark:  deletedMark,
		AddressError: addressError,
		DataError:    dataError,
		ReadLenBits:  len(trackBuf) * 16,
		ReadLenBytes: len(trackBuf),
	}, nil
}

// Read is unsupported: a meta-sector track has no underlying
// bitstream to dump.
func (t *MetaSectorTrack) Read(overdump int) (ReadTrackResult, error) {
	return ReadTrackResult{}, ErrUnsupportedFormat
}

// Format is unsupported for a meta-sector track.
func (t *MetaSectorTrack) Format(standard system34.Standard, sectors []schema.DiskChsn, fillPattern []byte, gap3 int) error {
	return ErrUnsupportedFormat
}

// Analysis summarizes sector-numbering consistency, sector-size
// consistency, and any CRC/deleted-mark flags across the track.
func (t *MetaSectorTrack) Analysis() (schema.Analysis, error) {
	var a schema.Analysis
	a.SectorCount = len(t.sectors)

	nSet := make(map[uint8]bool)
	var lastN uint8
	for i, s := range t.sectors {
		if s.idChsn.Sector != uint8(i+1) {
			a.NonconsecutiveSectors = true
		}
		if s.dataCRCError {
			a.DataError = true
		}
		if s.addressCRCError {
			a.AddressError = true
		}
		if s.deletedMark {
			a.DeletedData = true
		}
		if s.noDAM {
			a.NoDAM = true
		}
		lastN = s.idChsn.N
		nSet[s.idChsn.N] = true
	}
	if len(nSet) == 1 {
		n := lastN
		a.ConsistentSectorSize = &n
	}

	return a, nil
}

// Hash returns the SHA-1 digest of every sector's data concatenated in
// storage order, mirroring BitStreamTrack.Hash's meaning (a digest of
// the track's actual content) despite there being no raw bitstream
// here to hash directly.
func (t *MetaSectorTrack) Hash() [20]byte {
	rtr, _ := t.ReadAllSectors(0xFF, 0xFF)
	return sha1.Sum(rtr.ReadBuf)
}
