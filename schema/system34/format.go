package system34

import (
	"errors"

	"github.com/gofloppy/fluxcore/bitcell"
	"github.com/gofloppy/fluxcore/schema"
)

// FormatResult is a freshly formatted track image: the plain (not yet
// marker-encoded) byte stream and the byte offset of every address
// mark within it, for SetTrackMarkers to patch in afterward.
type FormatResult struct {
	TrackBytes []byte
	Markers    []MarkerHit
}

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// FormatTrackAsBytes synthesizes a blank, formatted track: GAP4A/sync/
// IAM/GAP1 prologue for IBM and Perpendicular standards (ISO omits the
// IAM, starting directly with GAP1), then for every sector a sync/
// IDAM/CHSN/CRC/GAP2/sync/DAM/data/CRC/GAP3 run, padded to
// bitcellCount bits with GAP4B filler. fillPattern supplies the sector
// data bytes, repeating if shorter than a sector. The returned bytes
// are plain (not yet address-mark clock-encoded); pass Markers to
// SetTrackMarkers once the bytes have been MFM/FM-encoded to patch in
// the real clock-violating marker bit patterns.
func FormatTrackAsBytes(standard Standard, bitcellCount int, sectors []schema.DiskChsn, fillPattern []byte, gap3 int) (*FormatResult, error) {
	if len(fillPattern) == 0 {
		return nil, errors.New("system34: fill pattern cannot be empty")
	}

	trackByteCount := (bitcellCount + bitLen - 1) / bitLen

	var trackBytes []byte
	var markers []MarkerHit

	if standard == StandardIBM || standard == StandardPerpendicular {
		trackBytes = append(trackBytes, repeatByte(GapByte, IBMGap4A)...)
		trackBytes = append(trackBytes, repeatByte(SyncByte, SyncLen)...)
		markers = append(markers, MarkerHit{Marker: MarkerIAM, Start: len(trackBytes)})
		trackBytes = append(trackBytes, iamBytes...)
		gap1 := IBMGap1
		if standard == StandardPerpendicular {
			gap1 = PerpendicularGap1
		}
		trackBytes = append(trackBytes, repeatByte(GapByte, gap1)...)
	} else {
		trackBytes = append(trackBytes, repeatByte(GapByte, ISOGap1)...)
	}

	patCursor := 0
	for _, sector := range sectors {
		trackBytes = append(trackBytes, repeatByte(SyncByte, SyncLen)...)
		markers = append(markers, MarkerHit{Marker: MarkerIDAM, Start: len(trackBytes)})
		idamCRCOffset := len(trackBytes)
		trackBytes = append(trackBytes, idamBytes...)

		trackBytes = append(trackBytes, byte(sector.Cylinder), sector.Head, sector.Sector, sector.N)

		headerCRC := bitcell.CRCIBM3740(trackBytes[idamCRCOffset:])
		trackBytes = append(trackBytes, byte(headerCRC>>8), byte(headerCRC))

		trackBytes = append(trackBytes, repeatByte(GapByte, standard.Gap2())...)
		trackBytes = append(trackBytes, repeatByte(SyncByte, SyncLen)...)

		markers = append(markers, MarkerHit{Marker: MarkerDAM, Start: len(trackBytes)})
		damCRCOffset := len(trackBytes)
		trackBytes = append(trackBytes, damBytes...)

		sectorSize := sector.SizeBytes()
		if len(fillPattern) == 1 {
			trackBytes = append(trackBytes, repeatByte(fillPattern[0], sectorSize)...)
		} else {
			buf := make([]byte, 0, sectorSize)
			for len(buf) < sectorSize {
				remain := sectorSize - len(buf)
				end := patCursor + remain
				if end > len(fillPattern) {
					end = len(fillPattern)
				}
				buf = append(buf, fillPattern[patCursor:end]...)
				patCursor = (patCursor + (end - patCursor)) % len(fillPattern)
			}
			trackBytes = append(trackBytes, buf...)
		}

		dataCRC := bitcell.CRCIBM3740(trackBytes[damCRCOffset:])
		trackBytes = append(trackBytes, byte(dataCRC>>8), byte(dataCRC))

		trackBytes = append(trackBytes, repeatByte(GapByte, gap3)...)
	}

	if len(trackBytes) < trackByteCount {
		trackBytes = append(trackBytes, repeatByte(GapByte, trackByteCount-len(trackBytes))...)
	}
	if len(trackBytes) > trackByteCount {
		trackBytes = trackBytes[:trackByteCount]
	}

	return &FormatResult{TrackBytes: trackBytes, Markers: markers}, nil
}

// SetTrackMarkers patches the real, clock-violating address-mark bit
// pattern for each hit directly into dec's raw encoded bit vector, at
// the byte offset recorded by FormatTrackAsBytes (converted to a bit
// offset). This writes raw bits rather than going through Encode,
// since the marker's clock violation only has meaning across the
// whole 4-byte sync+tag group and can't be produced by the plain
// per-bit encode rule.
func SetTrackMarkers(dec Decoder, enc schema.Encoding, hits []MarkerHit) error {
	_, encoder, err := finderFor(enc)
	if err != nil {
		return err
	}
	data := dec.RawData()

	for _, hit := range hits {
		val := encoder(markerBytes(hit.Marker))
		bitIndex := hit.Start * bitLen
		for i := 0; i < markerLenBits; i++ {
			if bitIndex+i >= data.Len() {
				break
			}
			bit := (val>>(uint(markerLenBits-1-i)))&1 != 0
			data.Set(bitIndex+i, bit)
		}
	}
	return nil
}
