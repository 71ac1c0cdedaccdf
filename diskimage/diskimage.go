package diskimage

import (
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
	"github.com/gofloppy/fluxcore/track"
)

// DiskImage owns the pool of per-cylinder/head tracks a floppy image
// is made of, plus the geometry and format metadata around that pool.
// A DiskImage is locked to one DataResolution the moment its first
// track is added: a FluxStream image cannot later grow a BitStream
// track, and vice versa.
type DiskImage struct {
	standardFormat StandardFormat
	sourceFormat   string
	resolution     *track.DataResolution
	descriptor     DiskDescriptor
	consistency    Consistency
	volumeName     string
	comment        string

	trackPool []track.Track
	trackMap  [2][]int

	shared *SharedDiskContext
}

// NewDiskImage returns an empty DiskImage with no resolution locked in
// and no tracks.
func NewDiskImage() *DiskImage {
	return &DiskImage{shared: &SharedDiskContext{}}
}

// Create returns a DiskImage pre-populated with format's descriptor,
// ready to accept tracks. It does not add or format any tracks itself;
// callers building a blank disk should follow it with Format.
func Create(format StandardFormat) *DiskImage {
	di := NewDiskImage()
	di.standardFormat = format
	di.descriptor = format.Descriptor()
	return di
}

// Resolution reports the DataResolution the image is locked to, or nil
// if no track has been added yet.
func (di *DiskImage) Resolution() *track.DataResolution {
	return di.resolution
}

// lockResolution locks the image to want on first use, and rejects any
// later attempt to add a track at a different resolution.
func (di *DiskImage) lockResolution(want track.DataResolution) error {
	if di.resolution == nil {
		di.resolution = &want
		return nil
	}
	if *di.resolution != want {
		return ErrIncompatibleImage
	}
	return nil
}

// Geometry returns the image's current cylinder/head extent, derived
// from the track map rather than the nominal descriptor: a
// copy-protected or partially loaded image may have fewer cylinders
// than its descriptor claims.
func (di *DiskImage) Geometry() schema.DiskCh {
	heads := uint8(0)
	cylinders := uint16(0)
	for h := range di.trackMap {
		if len(di.trackMap[h]) == 0 {
			continue
		}
		heads = uint8(h + 1)
		if n := uint16(len(di.trackMap[h])); n > cylinders {
			cylinders = n
		}
	}
	return schema.DiskCh{Cylinder: cylinders, Head: heads}
}

// Descriptor returns the image's nominal DiskDescriptor.
func (di *DiskImage) Descriptor() DiskDescriptor { return di.descriptor }

// SetDescriptor overrides the image's nominal DiskDescriptor, used by a
// format parser that has read more precise geometry from a file header
// than StandardFormat alone implies.
func (di *DiskImage) SetDescriptor(d DiskDescriptor) { di.descriptor = d }

// VolumeName and SetVolumeName carry an optional label, as read from
// or written to a filesystem volume boot record.
func (di *DiskImage) VolumeName() string        { return di.volumeName }
func (di *DiskImage) SetVolumeName(name string) { di.volumeName = name }
func (di *DiskImage) Comment() string           { return di.comment }
func (di *DiskImage) SetComment(comment string) { di.comment = comment }

// SourceFormat and SetSourceFormat record which concrete format parser
// (e.g. "raw", "hfe") produced this image, for diagnostics and for
// round-trip writers that want to preserve a source-specific quirk.
func (di *DiskImage) SourceFormat() string        { return di.sourceFormat }
func (di *DiskImage) SetSourceFormat(name string) { di.sourceFormat = name }

// Writes returns the number of mutating operations (WriteSector,
// FormatTrack, Format) performed on this image so far.
func (di *DiskImage) Writes() uint64 { return di.shared.Writes() }

// TrackAt returns the Track at ch, for a format writer (formats/hfe)
// that needs lower-level access than the ReadXxx/WriteXxx methods
// offer, such as RawBytes for re-encoding a track's raw bitstream.
func (di *DiskImage) TrackAt(ch schema.DiskCh) (track.Track, error) {
	return di.trackAt(ch)
}

func (di *DiskImage) trackAt(ch schema.DiskCh) (track.Track, error) {
	if ch.Head > 1 || int(ch.Head) >= len(di.trackMap) || int(ch.Cylinder) >= len(di.trackMap[ch.Head]) {
		return nil, ErrSeek
	}
	ti := di.trackMap[ch.Head][ch.Cylinder]
	return di.trackPool[ti], nil
}

func (di *DiskImage) pushTrack(ch schema.DiskCh, t track.Track) {
	di.trackPool = append(di.trackPool, t)
	di.trackMap[ch.Head] = append(di.trackMap[ch.Head], len(di.trackPool)-1)
}

// AddTrackBitstream adds a new BitStreamTrack built from params,
// locking the image to ResolutionBitStream on first use.
func (di *DiskImage) AddTrackBitstream(params track.BitStreamTrackParams) error {
	if params.Ch.Head >= 2 {
		return ErrSeek
	}
	if err := di.lockResolution(track.ResolutionBitStream); err != nil {
		return err
	}
	t, err := track.NewBitStreamTrack(params)
	if err != nil {
		return &DiskImageError{Op: "add bitstream track", Err: err}
	}
	di.pushTrack(params.Ch, t)
	return nil
}

// AddTrackFluxstream adds a new FluxStreamTrack built from params,
// locking the image to ResolutionFluxStream on first use. This is the
// path a flux-capture device adapter uses to hand a freshly read track
// to the image without resolving it to a bitstream up front.
func (di *DiskImage) AddTrackFluxstream(params track.FluxStreamTrackParams) error {
	if params.Ch.Head >= 2 {
		return ErrSeek
	}
	if err := di.lockResolution(track.ResolutionFluxStream); err != nil {
		return err
	}
	t, err := track.NewFluxStreamTrack(params)
	if err != nil {
		return &DiskImageError{Op: "add fluxstream track", Err: err}
	}
	di.pushTrack(params.Ch, t)
	return nil
}

// AddTrackMetaSector adds a new, empty MetaSectorTrack at ch, locking
// the image to ResolutionMetaSector on first use. Sectors are then
// added to it one at a time via MasterSector.
func (di *DiskImage) AddTrackMetaSector(ch schema.DiskCh, encoding schema.Encoding, dataRate track.DataRate) error {
	if ch.Head >= 2 {
		return ErrSeek
	}
	if err := di.lockResolution(track.ResolutionMetaSector); err != nil {
		return err
	}
	di.pushTrack(ch, track.NewMetaSectorTrack(ch, encoding, dataRate))
	return nil
}

// AddEmptyTrack adds a blank track of bitcells bits at ch, in whichever
// of BitStream/MetaSector resolution the image is already locked to.
// It is the Format path's building block: lay down blank tracks across
// the whole disk, then format each one.
func (di *DiskImage) AddEmptyTrack(ch schema.DiskCh, encoding schema.Encoding, dataRate track.DataRate, bitcells int) error {
	if ch.Head >= 2 {
		return ErrSeek
	}
	if di.resolution == nil {
		return ErrIncompatibleImage
	}
	switch *di.resolution {
	case track.ResolutionBitStream:
		if len(di.trackMap[ch.Head]) != int(ch.Cylinder) {
			return ErrParameter
		}
		t, err := track.NewBitStreamTrack(track.BitStreamTrackParams{
			Ch:        ch,
			Encoding:  encoding,
			BitcellCt: bitcells,
			DataRate:  dataRate,
		})
		if err != nil {
			return &DiskImageError{Op: "add empty track", Err: err}
		}
		di.pushTrack(ch, t)
		return nil
	case track.ResolutionMetaSector:
		if len(di.trackMap[ch.Head]) != int(ch.Cylinder) {
			return ErrParameter
		}
		di.pushTrack(ch, track.NewMetaSectorTrack(ch, encoding, dataRate))
		return nil
	default:
		return ErrIncompatibleImage
	}
}

// MasterSector adds sd to the MetaSectorTrack at ch: the image's
// equivalent of a drive writing a freshly formatted sector, used by
// formats/raw to build a track's sector list from a flat sector image.
func (di *DiskImage) MasterSector(ch schema.DiskCh, sd track.SectorDescriptor, alternate bool) error {
	t, err := di.trackAt(ch)
	if err != nil {
		return err
	}
	if err := t.AddSector(sd, alternate); err != nil {
		return &DiskImageError{Op: "master sector", Err: err}
	}
	return nil
}

// ReadSector reads one sector from the track at ch, routing the
// request to that track's Track.ReadSector.
func (di *DiskImage) ReadSector(ch schema.DiskCh, id schema.SectorIdQuery, overrideN *uint8, scope schema.RwScope, debug bool) (track.ReadSectorResult, error) {
	t, err := di.trackAt(ch)
	if err != nil {
		return track.ReadSectorResult{}, err
	}
	return t.ReadSector(id, overrideN, 0, scope, debug)
}

// WriteSector writes data to one sector on the track at ch, bumping
// the image's write counter on success.
func (di *DiskImage) WriteSector(ch schema.DiskCh, id schema.SectorIdQuery, data []byte, scope schema.RwScope, writeDeleted, debug bool) (track.WriteSectorResult, error) {
	t, err := di.trackAt(ch)
	if err != nil {
		return track.WriteSectorResult{}, err
	}
	wsr, err := t.WriteSector(id, 0, data, scope, writeDeleted, debug)
	if err != nil {
		return wsr, err
	}
	di.shared.RecordWrite()
	return wsr, nil
}

// ReadAllSectors reads every sector on the track at ch in order,
// starting at sector n, up to eot sectors (or fewer, for a
// MetaSectorTrack, whose eot is a sector count rather than a stop
// sector number).
func (di *DiskImage) ReadAllSectors(ch schema.DiskCh, n, eot uint8) (track.ReadTrackResult, error) {
	t, err := di.trackAt(ch)
	if err != nil {
		return track.ReadTrackResult{}, err
	}
	return t.ReadAllSectors(n, eot)
}

// ReadTrack reads the entire raw track at ch (address marks and CRCs
// included, for a bitstream-resolution track).
func (di *DiskImage) ReadTrack(ch schema.DiskCh) (track.ReadTrackResult, error) {
	t, err := di.trackAt(ch)
	if err != nil {
		return track.ReadTrackResult{}, err
	}
	return t.Read(0)
}

// FormatTrack lays format down as a fresh IBM System 34 track at ch,
// as the single sector layout every format.go caller uses today.
func (di *DiskImage) FormatTrack(ch schema.DiskCh, sectors []schema.DiskChsn, fillByte byte, gap3 int) error {
	t, err := di.trackAt(ch)
	if err != nil {
		return err
	}
	if err := t.Format(system34.StandardISO, sectors, []byte{fillByte}, gap3); err != nil {
		return &DiskImageError{Op: "format track", Err: err}
	}
	di.shared.RecordWrite()
	return nil
}

// IsIDValid reports whether a sector numbered id exists anywhere
// on the track at ch.
func (di *DiskImage) IsIDValid(ch schema.DiskCh, id uint8) bool {
	t, err := di.trackAt(ch)
	if err != nil {
		return false
	}
	return t.HasSectorID(id)
}

// ResetImage drops every track, returning the image to an empty state
// while preserving its standard format, descriptor, and source format.
func (di *DiskImage) ResetImage() {
	di.trackPool = nil
	di.trackMap = [2][]int{}
	di.resolution = nil
	di.consistency = Consistency{}
	di.volumeName = ""
	di.comment = ""
	di.shared = &SharedDiskContext{}
}

// Format wipes the image and rebuilds it from scratch as format: blank
// tracks across the whole geometry, then an IBM System 34 layout
// formatted onto each one. Unlike the system this was distilled from,
// no filesystem boot sector is synthesized; a caller wanting one
// writes it with WriteSector against sector 1 after Format returns.
func (di *DiskImage) Format(format StandardFormat) error {
	chsn := format.Chsn()
	encoding := format.Encoding()
	dataRate := format.DataRate()
	bitcells := format.BitcellCount()

	di.ResetImage()
	di.standardFormat = format
	di.descriptor = format.Descriptor()
	if err := di.lockResolution(track.ResolutionBitStream); err != nil {
		return err
	}

	for head := uint8(0); head < chsn.H(); head++ {
		for cyl := uint16(0); cyl < chsn.C(); cyl++ {
			ch := schema.DiskCh{Cylinder: cyl, Head: head}
			if err := di.AddEmptyTrack(ch, encoding, dataRate, bitcells); err != nil {
				return err
			}
		}
	}

	gap3 := format.Gap3()
	for head := uint8(0); head < chsn.H(); head++ {
		for cyl := uint16(0); cyl < chsn.C(); cyl++ {
			ch := schema.DiskCh{Cylinder: cyl, Head: head}
			var sectors []schema.DiskChsn
			for s := uint8(0); s < chsn.S(); s++ {
				sectors = append(sectors, schema.NewDiskChsn(cyl, head, s+1, chsn.N))
			}
			if err := di.FormatTrack(ch, sectors, 0x00, gap3); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetNextID returns the CHSN of the sector immediately after sector on
// the track at ch, or nil if sector is the last sector or was not
// found. This does not account for nonconsecutive sector numbering on
// a copy-protected track.
func (di *DiskImage) GetNextID(ch schema.DiskCh, sector uint8) *schema.DiskChsn {
	t, err := di.trackAt(ch)
	if err != nil {
		return nil
	}
	list := t.SectorList()
	for i, entry := range list {
		if entry.Chsn.Sector == sector {
			if i+1 < len(list) {
				next := list[i+1].Chsn
				return &next
			}
			return nil
		}
	}
	return nil
}

// HasWeakBits reports whether any track in the image carries a weak
// bit mask.
func (di *DiskImage) HasWeakBits() bool {
	for _, t := range di.trackPool {
		if t.HasWeakBits() {
			return true
		}
	}
	return false
}

// GetSectorMap returns every track's sector list, indexed
// [head][cylinder].
func (di *DiskImage) GetSectorMap() [][][]track.SectorMapEntry {
	headMap := make([][][]track.SectorMapEntry, len(di.trackMap))
	for head := range di.trackMap {
		trackMap := make([][]track.SectorMapEntry, 0, len(di.trackMap[head]))
		for _, ti := range di.trackMap[head] {
			trackMap = append(trackMap, di.trackPool[ti].SectorList())
		}
		headMap[head] = trackMap
	}
	return headMap
}

// Analyze computes a Consistency summary across every track in the
// image, caching it on the DiskImage and returning it.
func (di *DiskImage) Analyze() (Consistency, error) {
	var c Consistency
	var sectorSize *uint8
	sizeMismatch := false
	var trackLen *int
	lenMismatch := false

	for _, t := range di.trackPool {
		a, err := t.Analysis()
		if err != nil {
			continue
		}
		if a.AddressError {
			c.BadAddressCRC = true
		}
		if a.DataError {
			c.BadDataCRC = true
		}
		if a.DeletedData {
			c.Deleted = true
		}
		if t.HasWeakBits() {
			c.Weak = true
		}
		if a.ConsistentSectorSize != nil {
			if sectorSize == nil {
				sectorSize = a.ConsistentSectorSize
			} else if *sectorSize != *a.ConsistentSectorSize {
				sizeMismatch = true
			}
		}

		info := t.Info()
		if trackLen == nil {
			bl := info.BitLength
			trackLen = &bl
		} else if *trackLen != info.BitLength {
			lenMismatch = true
		}
	}

	if !sizeMismatch {
		c.ConsistentSectorSize = sectorSize
	}
	if !lenMismatch {
		c.ConsistentTrackLength = trackLen
	}

	di.consistency = c
	return c, nil
}
