package system34

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofloppy/fluxcore/mfm"
	"github.com/gofloppy/fluxcore/schema"
)

func buildTestTrack(t *testing.T, sectors []schema.DiskChsn) (*mfm.Codec, *FormatResult) {
	t.Helper()
	const bitcellCount = 100_000

	result, err := FormatTrackAsBytes(StandardIBM, bitcellCount, sectors, []byte{0xF6}, IBMGap3Default)
	require.NoError(t, err)

	data := mfm.Encode(result.TrackBytes, false)
	codec := mfm.NewCodec(data, nil)

	require.NoError(t, SetTrackMarkers(codec, schema.EncodingMFM, result.Markers))
	return codec, result
}

func TestScanMarkersFindsIAMIDAMDAM(t *testing.T) {
	sectors := []schema.DiskChsn{schema.NewDiskChsn(0, 0, 1, 1)}
	codec, result := buildTestTrack(t, sectors)

	hits, err := ScanMarkers(codec, schema.EncodingMFM)
	require.NoError(t, err)
	require.Len(t, hits, len(result.Markers))

	wantOrder := []Marker{MarkerIAM, MarkerIDAM, MarkerDAM}
	for i, hit := range hits {
		require.Equal(t, wantOrder[i], hit.Marker, "marker %d", i)
		wantStart := result.Markers[i].Start * bitLen
		require.Equal(t, wantStart, hit.Start, "marker %d start", i)
	}
}

func TestScanMetadataExtractsSectorHeaderAndData(t *testing.T) {
	sectors := []schema.DiskChsn{schema.NewDiskChsn(2, 1, 1, 1)}
	codec, _ := buildTestTrack(t, sectors)

	hits, err := ScanMarkers(codec, schema.EncodingMFM)
	require.NoError(t, err)
	CreateClockMap(hits, codec.ClockBits())

	elements := ScanMetadata(codec, hits)

	var header, data *schema.ElementInstance
	for i := range elements {
		switch elements[i].Kind {
		case schema.ElementSectorHeader:
			header = &elements[i]
		case schema.ElementSectorData:
			data = &elements[i]
		}
	}
	require.NotNil(t, header, "no SectorHeader element found among %d elements", len(elements))
	require.NotNil(t, data, "no SectorData element found among %d elements", len(elements))

	want := sectors[0]
	require.Equal(t, want, header.Chsn, "header CHSN")
	require.False(t, header.AddressError, "header reports AddressError, want a clean CRC")
	require.False(t, header.DataMissing, "header reports DataMissing, want a DAM present")
	require.Equal(t, want, data.Chsn, "data CHSN")
	require.False(t, data.DataError, "data reports DataError, want a clean CRC")
	require.False(t, data.Deleted, "data reports Deleted, want a DAM not a DDAM")
}

func TestScanMetadataFlagsDeletedData(t *testing.T) {
	sectors := []schema.DiskChsn{schema.NewDiskChsn(0, 0, 1, 2)}
	result, err := FormatTrackAsBytes(StandardIBM, 100_000, sectors, []byte{0xF6}, IBMGap3Default)
	require.NoError(t, err)
	// Rewrite the DAM marker to a DDAM so the data is flagged deleted.
	for i := range result.Markers {
		if result.Markers[i].Marker == MarkerDAM {
			result.Markers[i].Marker = MarkerDDAM
		}
	}

	data := mfm.Encode(result.TrackBytes, false)
	codec := mfm.NewCodec(data, nil)
	require.NoError(t, SetTrackMarkers(codec, schema.EncodingMFM, result.Markers))

	hits, err := ScanMarkers(codec, schema.EncodingMFM)
	require.NoError(t, err)
	CreateClockMap(hits, codec.ClockBits())
	elements := ScanMetadata(codec, hits)

	found := false
	for _, e := range elements {
		if e.Kind == schema.ElementSectorData {
			found = true
			require.True(t, e.Deleted, "expected Deleted on a DDAM-marked sector")
		}
	}
	require.True(t, found, "no SectorData element found")
}

func TestFindSectorElementLocatesQueriedSector(t *testing.T) {
	sectors := []schema.DiskChsn{
		schema.NewDiskChsn(3, 0, 1, 2),
		schema.NewDiskChsn(3, 0, 2, 2),
	}
	codec, _ := buildTestTrack(t, sectors)

	hits, err := ScanMarkers(codec, schema.EncodingMFM)
	require.NoError(t, err)
	CreateClockMap(hits, codec.ClockBits())
	elements := ScanMetadata(codec, hits)

	result := schema.FindSectorElement(schema.NewSectorIdQuery(2), elements, 0)
	require.True(t, result.Found, "sector 2 not found")
	require.Equal(t, uint8(2), result.Chsn.Sector, "found sector")
	require.False(t, result.DataError || result.AddressError, "unexpected error flags on sector 2: %+v", result)
}

func TestCreateClockMapClearsBitBeforeEachMarker(t *testing.T) {
	sectors := []schema.DiskChsn{schema.NewDiskChsn(0, 0, 1, 0)}
	codec, _ := buildTestTrack(t, sectors)

	hits, err := ScanMarkers(codec, schema.EncodingMFM)
	require.NoError(t, err)
	CreateClockMap(hits, codec.ClockBits())

	for _, hit := range hits {
		if hit.Start == 0 {
			continue
		}
		require.False(t, codec.ClockBits().Get(hit.Start-1), "clock bit before marker at %d was not cleared", hit.Start)
	}
}
