package ovf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/alawein/maglogic/internal/mag"
)

// Write encodes g as a text-mode snapshot. The output round-trips through
// Parse within floating tolerance.
func Write(w io.Writer, g *mag.FieldGrid) error {
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, g); err != nil {
		return err
	}

	fmt.Fprintf(bw, "# Begin: Data Text\n")
	for i := 0; i < g.Cells(); i++ {
		row := g.At(i)
		for c, v := range row {
			if c > 0 {
				bw.WriteByte(' ')
			}
			fmt.Fprintf(bw, "%.17g", v)
		}
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "# End: Data Text\n")
	fmt.Fprintf(bw, "# End: Segment\n")
	return bw.Flush()
}

// WriteBinary encodes g as a binary snapshot with the given word width
// (4 or 8) and byte order, prefixing the data block with the verification
// sentinel for that width.
func WriteBinary(w io.Writer, g *mag.FieldGrid, width int, order binary.ByteOrder) error {
	if width != 4 && width != 8 {
		return fmt.Errorf("ovf: unsupported word width %d", width)
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, g); err != nil {
		return err
	}
	fmt.Fprintf(bw, "# Begin: Data Binary %d\n", width)

	buf := make([]byte, 8)
	put := func(v float64) {
		if width == 4 {
			order.PutUint32(buf, math.Float32bits(float32(v)))
		} else {
			order.PutUint64(buf, math.Float64bits(v))
		}
		bw.Write(buf[:width])
	}

	if width == 4 {
		order.PutUint32(buf, math.Float32bits(Sentinel4))
	} else {
		order.PutUint64(buf, math.Float64bits(Sentinel8))
	}
	bw.Write(buf[:width])

	for _, v := range g.Data {
		put(v)
	}

	fmt.Fprintf(bw, "\n# End: Data Binary %d\n", width)
	fmt.Fprintf(bw, "# End: Segment\n")
	return bw.Flush()
}

func writeHeader(bw *bufio.Writer, g *mag.FieldGrid) error {
	if len(g.Data) != g.Cells()*g.ValueDim {
		return fmt.Errorf("ovf: grid data length %d does not match %d cells x %d components",
			len(g.Data), g.Cells(), g.ValueDim)
	}

	fmt.Fprintf(bw, "# OOMMF OVF 2.0\n")
	fmt.Fprintf(bw, "# Segment count: 1\n")
	fmt.Fprintf(bw, "# Begin: Segment\n")
	fmt.Fprintf(bw, "# Begin: Header\n")
	if title, ok := g.Meta["title"]; ok {
		fmt.Fprintf(bw, "# Title: %s\n", title.String())
	}
	fmt.Fprintf(bw, "# meshtype: rectangular\n")
	fmt.Fprintf(bw, "# meshunit: m\n")

	nodes := [3]int{g.Nx, g.Ny, g.Nz}
	axes := [3]string{"x", "y", "z"}
	for a := 0; a < 3; a++ {
		min := g.Origin[a] - g.CellSize[a]/2
		max := min + float64(nodes[a])*g.CellSize[a]
		fmt.Fprintf(bw, "# %sbase: %.17g\n", axes[a], g.Origin[a])
		fmt.Fprintf(bw, "# %sstepsize: %.17g\n", axes[a], g.CellSize[a])
		fmt.Fprintf(bw, "# %snodes: %d\n", axes[a], nodes[a])
		fmt.Fprintf(bw, "# %smin: %.17g\n", axes[a], min)
		fmt.Fprintf(bw, "# %smax: %.17g\n", axes[a], max)
	}

	fmt.Fprintf(bw, "# valuedim: %d\n", g.ValueDim)
	if units, ok := g.Meta["valueunits"]; ok {
		fmt.Fprintf(bw, "# valueunits: %s\n", units.String())
	}
	fmt.Fprintf(bw, "# valuemultiplier: %.17g\n", g.ValueMultiplier)
	fmt.Fprintf(bw, "# End: Header\n")
	return nil
}
