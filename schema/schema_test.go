package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNSizeFormula(t *testing.T) {
	cases := []struct {
		n    uint8
		want int
	}{
		{0, 128},
		{1, 256},
		{2, 512},
		{3, 1024},
		{6, 8192},
		{7, 8192}, // overflow territory: still capped at 8192.
	}
	for _, c := range cases {
		require.Equal(t, c.want, NSize(c.n), "NSize(%d)", c.n)
	}
}

func TestSectorIdQueryMatches(t *testing.T) {
	chsn := NewDiskChsn(5, 1, 3, 2)

	q := NewSectorIdQuery(3)
	require.True(t, q.Matches(chsn), "sector-only query should match any cylinder/head")

	cyl := uint16(5)
	q2 := SectorIdQuery{Cylinder: &cyl, Sector: q.Sector}
	require.True(t, q2.Matches(chsn), "matching cylinder+sector should match")

	wrongCyl := uint16(6)
	q3 := SectorIdQuery{Cylinder: &wrongCyl, Sector: q.Sector}
	require.False(t, q3.Matches(chsn), "mismatched cylinder should not match")
}

func TestElementInstanceVisualClassification(t *testing.T) {
	cases := []struct {
		name string
		e    ElementInstance
		want VisualKind
	}{
		{"marker", ElementInstance{Kind: ElementMarker}, VisualMarker},
		{"clean header", ElementInstance{Kind: ElementSectorHeader}, VisualSectorHeader},
		{"bad header", ElementInstance{Kind: ElementSectorHeader, AddressError: true}, VisualSectorBadHeader},
		{"clean data", ElementInstance{Kind: ElementSectorData}, VisualSectorData},
		{"bad data", ElementInstance{Kind: ElementSectorData, DataError: true}, VisualSectorBadData},
		{"deleted data", ElementInstance{Kind: ElementSectorData, Deleted: true}, VisualSectorDeletedData},
		{"bad deleted data", ElementInstance{Kind: ElementSectorData, Deleted: true, AddressError: true}, VisualSectorBadDeletedData},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.e.Visual())
		})
	}
}

func TestAnalyzeDetectsNonconsecutiveAndVariableSize(t *testing.T) {
	m := &Metadata{Elements: []ElementInstance{
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(0, 0, 1, 2)},
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(0, 0, 3, 3)}, // skips sector 2, and N differs
	}}
	a := Analyze(m)
	require.True(t, a.NonconsecutiveSectors, "expected nonconsecutive sectors to be flagged")
	require.Nil(t, a.ConsistentSectorSize, "expected inconsistent sector size")
	require.Equal(t, 2, a.SectorCount)
}

func TestAnalyzeConsistentSizeAndErrorFlags(t *testing.T) {
	m := &Metadata{Elements: []ElementInstance{
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(0, 0, 1, 2)},
		{Kind: ElementSectorData, Chsn: NewDiskChsn(0, 0, 1, 2), DataError: true},
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(0, 0, 2, 2), DataMissing: true},
	}}
	a := Analyze(m)
	require.NotNil(t, a.ConsistentSectorSize)
	require.Equal(t, uint8(2), *a.ConsistentSectorSize)
	require.True(t, a.DataError, "expected DataError to be flagged from the SectorData element")
	require.True(t, a.NoDAM, "expected NoDAM to be flagged from the DataMissing header")
}

func TestFindSectorElementReportsWrongCylinder(t *testing.T) {
	elements := []ElementInstance{
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(1, 0, 1, 2), Start: 0},
	}
	cyl := uint16(2)
	query := SectorIdQuery{Cylinder: &cyl, Sector: NewSectorIdQuery(1).Sector}

	result := FindSectorElement(query, elements, 0)
	require.False(t, result.Found, "expected no exact match for a different cylinder")
	require.True(t, result.WrongCylinder)
}

func TestFindSectorElementFindsHeaderAndData(t *testing.T) {
	want := NewDiskChsn(0, 0, 2, 1)
	elements := []ElementInstance{
		{Kind: ElementSectorHeader, Chsn: NewDiskChsn(0, 0, 1, 1), Start: 0},
		{Kind: ElementSectorData, Chsn: NewDiskChsn(0, 0, 1, 1), Start: 10},
		{Kind: ElementSectorHeader, Chsn: want, Start: 20},
		{Kind: ElementSectorData, Chsn: want, Start: 30, DataError: true},
	}

	result := FindSectorElement(NewSectorIdQuery(2), elements, 0)
	require.True(t, result.Found, "expected to find sector 2's data")
	require.Equal(t, want, result.Chsn)
	require.True(t, result.DataError, "expected DataError to propagate from the matched SectorData element")
}
