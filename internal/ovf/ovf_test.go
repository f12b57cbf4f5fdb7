package ovf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alawein/maglogic/internal/mag"
)

func testGrid(nx, ny, nz int) *mag.FieldGrid {
	g := &mag.FieldGrid{
		Nx: nx, Ny: ny, Nz: nz,
		CellSize:        [3]float64{2e-9, 2e-9, 1e-9},
		Origin:          [3]float64{1e-9, 1e-9, 0.5e-9},
		ValueDim:        3,
		ValueMultiplier: 1,
		Data:            make([]float64, nx*ny*nz*3),
		Meta:            map[string]mag.MetaValue{"title": mag.String("test segment")},
	}
	for i := 0; i < g.Cells(); i++ {
		// Distinct, float32-exact components per cell.
		g.Data[i*3+0] = float64(i) * 0.25
		g.Data[i*3+1] = -float64(i) * 0.5
		g.Data[i*3+2] = 1
	}
	return g
}

func TestTextRoundTrip(t *testing.T) {
	g := testGrid(4, 3, 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g))

	parsed, err := Parse(&buf)
	require.NoError(t, err)

	require.Equal(t, g.Nx, parsed.Nx)
	require.Equal(t, g.Ny, parsed.Ny)
	require.Equal(t, g.Nz, parsed.Nz)
	require.Equal(t, g.ValueDim, parsed.ValueDim)
	require.InDelta(t, g.ValueMultiplier, parsed.ValueMultiplier, 1e-15)
	for a := 0; a < 3; a++ {
		require.InDelta(t, g.CellSize[a], parsed.CellSize[a], 1e-18)
		require.InDelta(t, g.Origin[a], parsed.Origin[a], 1e-18)
	}
	require.Len(t, parsed.Data, len(g.Data))
	for i := range g.Data {
		require.InDelta(t, g.Data[i], parsed.Data[i], 1e-12, "data[%d]", i)
	}

	title, ok := parsed.Meta["title"]
	require.True(t, ok)
	require.Equal(t, "test segment", title.String())
}

func TestBinaryRoundTrip(t *testing.T) {
	g := testGrid(3, 3, 1)

	for _, tc := range []struct {
		name  string
		width int
		order binary.ByteOrder
	}{
		{"4 little-endian", 4, binary.LittleEndian},
		{"4 big-endian", 4, binary.BigEndian},
		{"8 little-endian", 8, binary.LittleEndian},
		{"8 big-endian", 8, binary.BigEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteBinary(&buf, g, tc.width, tc.order))

			parsed, err := Parse(&buf)
			require.NoError(t, err)
			require.Len(t, parsed.Data, len(g.Data))
			for i := range g.Data {
				require.InDelta(t, g.Data[i], parsed.Data[i], 1e-6, "data[%d]", i)
			}
		})
	}
}

// The decoded grid must not depend on the byte order the file was written
// with: only the encoding differs, the values are the same.
func TestBinaryByteOrderIndependence(t *testing.T) {
	g := testGrid(5, 4, 1)

	var le, be bytes.Buffer
	require.NoError(t, WriteBinary(&le, g, 8, binary.LittleEndian))
	require.NoError(t, WriteBinary(&be, g, 8, binary.BigEndian))

	gle, err := Parse(&le)
	require.NoError(t, err)
	gbe, err := Parse(&be)
	require.NoError(t, err)
	require.Equal(t, gle.Data, gbe.Data)
}

func TestBinaryWrongSentinel(t *testing.T) {
	g := testGrid(2, 2, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, g, 4, binary.LittleEndian))

	raw := buf.Bytes()
	marker := []byte("# Begin: Data Binary 4\n")
	idx := bytes.Index(raw, marker)
	require.GreaterOrEqual(t, idx, 0)
	sentinelAt := idx + len(marker)
	raw[sentinelAt] ^= 0xff // corrupt the sentinel

	_, err := Parse(bytes.NewReader(raw))
	require.ErrorIs(t, err, mag.ErrFormatCorruption)

	var pe *mag.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, int64(sentinelAt), pe.Offset)
}

func TestBinaryTruncated(t *testing.T) {
	g := testGrid(4, 4, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, g, 8, binary.LittleEndian))

	raw := buf.Bytes()
	_, err := Parse(bytes.NewReader(raw[:len(raw)-64]))
	require.ErrorIs(t, err, mag.ErrFormatTruncated)
}

func textFixture(nx, ny, nz int, rows string) string {
	var sb strings.Builder
	sb.WriteString("# OOMMF OVF 2.0\n# Begin: Segment\n# Begin: Header\n")
	sb.WriteString("# meshtype: rectangular\n# valuedim: 3\n")
	nodes := [3]int{nx, ny, nz}
	for a, ax := range [3]string{"x", "y", "z"} {
		fmt.Fprintf(&sb, "# %snodes: %d\n", ax, nodes[a])
		fmt.Fprintf(&sb, "# %sstepsize: 1e-9\n", ax)
		fmt.Fprintf(&sb, "# %smin: 0\n", ax)
		fmt.Fprintf(&sb, "# %smax: %de-9\n", ax, nodes[a])
	}
	sb.WriteString("# End: Header\n# Begin: Data Text\n")
	sb.WriteString(rows)
	sb.WriteString("# End: Data Text\n")
	return sb.String()
}

func TestTextTruncated(t *testing.T) {
	// 2x1x1 grid but only one data row.
	in := textFixture(2, 1, 1, "0 0 1\n")
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrFormatTruncated)
}

func TestTextRagged(t *testing.T) {
	in := textFixture(2, 1, 1, "0 0 1\n0 1\n")
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrFormatTruncated)

	var pe *mag.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 2, pe.Row)
}

func TestTextBadToken(t *testing.T) {
	in := textFixture(1, 1, 1, "0 zero 1\n")
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrFormatCorruption)
}

func TestHeaderInconsistentBoundingBox(t *testing.T) {
	in := strings.Replace(
		textFixture(2, 1, 1, "0 0 1\n0 0 1\n"),
		"# xmax: 2e-9", "# xmax: 5e-9", 1)
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrFormatInconsistent)

	var pe *mag.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "xstepsize", pe.Field)
}

func TestHeaderMissingField(t *testing.T) {
	in := strings.Replace(
		textFixture(1, 1, 1, "0 0 1\n"),
		"# valuedim: 3\n", "", 1)
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrFormatInconsistent)
}

func TestUnsupportedMeshType(t *testing.T) {
	in := strings.Replace(
		textFixture(1, 1, 1, "0 0 1\n"),
		"meshtype: rectangular", "meshtype: irregular", 1)
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrUnsupportedVariant)
}

func TestNaNDataRejected(t *testing.T) {
	in := textFixture(1, 1, 1, "0 NaN 1\n")
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, mag.ErrInvalidFieldValue)
}

func TestZeroCellsCounted(t *testing.T) {
	in := textFixture(2, 1, 1, "0 0 0\n0 0 1\n")
	g, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	zeros, ok := g.Meta["zero_cells"]
	require.True(t, ok)
	v, _ := zeros.AsNumber()
	require.Equal(t, 1.0, v)
}

func TestOriginDefaultsToCellCenter(t *testing.T) {
	in := textFixture(1, 1, 1, "0 0 1\n")
	g, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.InDelta(t, 0.5e-9, g.Origin[0], 1e-18)
}

func TestSentinelConstants(t *testing.T) {
	// The 4-byte sentinel must be exactly representable as float32.
	require.Equal(t, float32(1234567.0), Sentinel4)
	require.False(t, math.IsNaN(Sentinel8))
}
