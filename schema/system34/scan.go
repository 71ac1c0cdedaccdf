package system34

import (
	"sort"

	"github.com/gofloppy/fluxcore/bitcell"
	"github.com/gofloppy/fluxcore/schema"
)

// Decoder is the minimal surface system34 needs from a bitstream
// codec. mfm.Codec and fm.Codec both implement it already, so either
// can drive the same scan without system34 depending on either
// package's concrete type.
type Decoder interface {
	ReadDecodedU8(bitIndex int) (byte, error)
	Len() int
	RawData() *bitcell.BitVec
	ClockBits() *bitcell.BitVec
}

// MarkerHit is one scanned address mark together with its System 34
// identity, as opposed to schema.MarkerItem's schema-agnostic tag.
type MarkerHit struct {
	Marker Marker
	Start  int
}

// MarkerItems converts scanned hits into the schema-generic
// representation, for consumers that don't need to know this is
// System 34.
func MarkerItems(hits []MarkerHit) []schema.MarkerItem {
	out := make([]schema.MarkerItem, len(hits))
	for i, h := range hits {
		out[i] = schema.MarkerItem{Tag: h.Marker.String(), Start: h.Start}
	}
	return out
}

// ScanMarkers scans dec for every System 34 address mark (IAM, IDAM,
// DAM, DDAM), in bit order. The IAM is searched for first and only
// within the track's first 5000 bits, since ISO-formatted tracks carry
// no IAM at all. Scanning then continues from the marker-sized-at-a-time
// pattern match for any A1-family marker, classifying each by its
// trailing 16 bits; an unrecognized trailing value ends the scan early
// rather than risk looping on a spurious match, mirroring the original
// algorithm's fail-stop behavior on a classification miss.
func ScanMarkers(dec Decoder, enc schema.Encoding) ([]MarkerHit, error) {
	finder, encoder, err := finderFor(enc)
	if err != nil {
		return nil, err
	}
	data := dec.RawData()

	var hits []MarkerHit
	cursor := 0

	iamPattern := encoder(iamBytes)
	if start, _, ok := finder(data, iamPattern, 0xFFFFFFFFFFFFFFFF, 0, 5000); ok {
		hits = append(hits, MarkerHit{Marker: MarkerIAM, Start: start})
		cursor = start + markerLenBits
	}

	anyPattern := encoder(idamBytes) & 0xFFFFFFFFFFFF0000
	const anyMask = uint64(0xFFFFFFFFFFFF0000)
	trailing := trailingMap(encoder)

	for {
		start, trail, ok := finder(data, anyPattern, anyMask, cursor, -1)
		if !ok {
			break
		}
		marker, known := trailing[trail]
		if !known {
			break
		}
		hits = append(hits, MarkerHit{Marker: marker, Start: start})
		cursor = start + markerLenBits
	}

	return hits, nil
}

// CreateClockMap builds the clock-phase map implied by a marker scan:
// the clock bit immediately before each marker is cleared (to allow
// the decoder to sync to the marker's own clock violation), and the
// regular alternating clock/data pattern is restored from each marker
// to the next (and from the last marker to the end of the track).
// Required before any ReadDecodedU8 call can be trusted, since marker
// sequences deliberately violate the regular clock pattern and the
// stream can't be read byte-aligned without knowing where that
// violation ends.
func CreateClockMap(hits []MarkerHit, clockMap *bitcell.BitVec) {
	lastMarkerIndex := 0
	for _, hit := range hits {
		bitIndex := hit.Start
		if lastMarkerIndex > 0 {
			clockMap.Set(lastMarkerIndex-1, false)
			for bi := lastMarkerIndex; bi < bitIndex; bi += 2 {
				clockMap.Set(bi, true)
				if bi+1 < clockMap.Len() {
					clockMap.Set(bi+1, false)
				}
			}
		}
		lastMarkerIndex = bitIndex
	}

	if lastMarkerIndex > 0 {
		clockMap.Set(lastMarkerIndex-1, false)
	}
	for bi := lastMarkerIndex; bi < clockMap.Len()-1; bi += 2 {
		clockMap.Set(bi, true)
		if bi+1 < clockMap.Len() {
			clockMap.Set(bi+1, false)
		}
	}
}

// sectorID is the decoded body of an IDAM: cylinder/head/sector/size
// code plus its recorded and verified CRC.
type sectorID struct {
	c, h, s, n byte
	crc        uint16
	crcValid   bool
}

func (s sectorID) chsn() schema.DiskChsn {
	return schema.NewDiskChsn(uint16(s.c), s.h, s.s, s.n)
}

func (s sectorID) sizeBytes() int {
	return schema.NSize(s.n)
}

func readSectorID(dec Decoder, start int) sectorID {
	var hdr [8]byte
	ReadElementBytes(dec, start, hdr[:])
	crcByte0, _ := dec.ReadDecodedU8(start + 8*bitLen)
	crcByte1, _ := dec.ReadDecodedU8(start + 9*bitLen)
	crc := uint16(crcByte0)<<8 | uint16(crcByte1)
	calculated := bitcell.CRCIBM3740(hdr[0:8])

	return sectorID{
		c: hdr[4], h: hdr[5], s: hdr[6], n: hdr[7],
		crc:      crc,
		crcValid: crc == calculated,
	}
}

// ReadElementBytes decodes len(buf) bytes starting at bit index start
// into buf, byte by byte.
func ReadElementBytes(dec Decoder, start int, buf []byte) {
	for i := range buf {
		b, _ := dec.ReadDecodedU8(start + i*bitLen)
		buf[i] = b
	}
}

// DecodeElement reads a sector header or sector data element's raw
// bytes into buf and verifies its trailing CRC-16/IBM-3740. Track-layer
// callers are expected to have already sized buf to the caller's
// requested scope/override length and to slice the result using
// ElementInstance.Range for display; DecodeElement only concerns
// itself with reading bytes and checking the checksum over them,
// mirroring the original decode_element's division of labor from its
// caller.
func DecodeElement(dec Decoder, instance schema.ElementInstance, buf []byte) (recorded, calculated uint16) {
	ReadElementBytes(dec, instance.Start, buf)
	return CRC16Bytes(buf)
}

// ScanMetadata extracts the sector header/data element stream from a
// marker scan: a back-to-back IDAM pair yields a SectorHeader with
// DataMissing set (a copy-protection technique that omits the data
// field entirely); an IDAM followed by a DAM or DDAM yields a
// SectorHeader spanning IDAM-to-DAM plus a SectorData spanning the DAM
// and the sector's data bytes, with the data's CRC verified against
// the sector size recorded in the IDAM. The SectorData's End stops
// before the two CRC bytes; the CRC check reads them past End. Must run after CreateClockMap has been
// applied to dec's clock map, since it reads decoded bytes through the
// marker regions.
func ScanMetadata(dec Decoder, hits []MarkerHit) []schema.ElementInstance {
	var elements []schema.ElementInstance
	var lastMarker *Marker
	var lastSector sectorID
	lastElementOffset := 0

	for _, hit := range hits {
		elementOffset := hit.Start

		switch {
		case lastMarker != nil && *lastMarker == MarkerIDAM && hit.Marker == MarkerIDAM:
			elements = append(elements, schema.ElementInstance{
				Kind:         schema.ElementSectorHeader,
				Start:        lastElementOffset,
				End:          elementOffset,
				Chsn:         lastSector.chsn(),
				AddressError: !lastSector.crcValid,
				DataMissing:  true,
			})

		case hit.Marker == MarkerIDAM:
			lastSector = readSectorID(dec, hit.Start)

		case lastMarker != nil && *lastMarker == MarkerIDAM && (hit.Marker == MarkerDAM || hit.Marker == MarkerDDAM):
			dataEnd := elementOffset + markerLenBits + lastSector.sizeBytes()*bitLen
			dataCRC, calcCRC := CRC16(dec, elementOffset, dataEnd)
			crcOK := dataCRC == calcCRC

			elements = append(elements, schema.ElementInstance{
				Kind:         schema.ElementSectorHeader,
				Start:        lastElementOffset,
				End:          elementOffset,
				Chsn:         lastSector.chsn(),
				AddressError: !lastSector.crcValid,
			})
			elements = append(elements, schema.ElementInstance{
				Kind:         schema.ElementSectorData,
				Start:        elementOffset,
				End:          dataEnd,
				Chsn:         lastSector.chsn(),
				AddressError: !lastSector.crcValid,
				DataError:    !crcOK,
				Deleted:      hit.Marker == MarkerDDAM,
			})
		}

		elements = append(elements, schema.ElementInstance{
			Kind:      schema.ElementMarker,
			Start:     hit.Start,
			End:       hit.Start + markerLenBits,
			Chsn:      lastSector.chsn(),
			MarkerTag: hit.Marker.String(),
		})

		lastElementOffset = elementOffset
		m := hit.Marker
		lastMarker = &m
	}

	if lastMarker != nil && *lastMarker == MarkerIDAM {
		// Track ends mid-sector: push a header with no data ever
		// following. The end offset is nominal (there is no next
		// marker to bound it), matching only visualisation's need for
		// a nonzero span.
		elements = append(elements, schema.ElementInstance{
			Kind:         schema.ElementSectorHeader,
			Start:        lastElementOffset,
			End:          lastElementOffset + 256,
			Chsn:         lastSector.chsn(),
			AddressError: !lastSector.crcValid,
			DataMissing:  true,
		})
	}

	sort.Slice(elements, func(i, j int) bool { return elements[i].Start < elements[j].Start })
	if len(elements) > 0 {
		elements[len(elements)-1].LastSector = true
	}
	return elements
}
