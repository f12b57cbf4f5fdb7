// Package ovf decodes and encodes vector-field snapshot files in the
// OVF-style format: a self-describing ASCII header followed by either a
// text data block (one line of floats per cell) or a fixed-width binary
// block prefixed with a verification sentinel.
package ovf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/alawein/maglogic/internal/mag"
)

// Verification sentinels written immediately before a binary data block.
// A mismatch under both byte orders means the file is corrupt or was
// written with a different word width than the header declares.
const (
	Sentinel4 = float32(1234567.0)
	Sentinel8 = float64(123456789012345.0)
)

const stepTolerance = 1e-6

// reader wraps a bufio.Reader and tracks the byte offset consumed, so
// errors can point at the exact position in the input.
type reader struct {
	br     *bufio.Reader
	offset int64
}

func (r *reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	r.offset += int64(len(line))
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (r *reader) readFull(buf []byte) error {
	n, err := io.ReadFull(r.br, buf)
	r.offset += int64(n)
	return err
}

type header struct {
	meshtype   string
	nodes      [3]int
	step       [3]float64
	min        [3]float64
	max        [3]float64
	base       [3]float64
	hasBase    [3]bool
	valueDim   int
	multiplier float64
	meta       map[string]mag.MetaValue
}

// ParseFile decodes the snapshot at path.
func ParseFile(path string) (*mag.FieldGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid, err := Parse(f)
	if err != nil {
		var pe *mag.ParseError
		if e, ok := err.(*mag.ParseError); ok {
			pe = e
		} else {
			pe = &mag.ParseError{Wrapped: err}
		}
		pe.Path = path
		return nil, pe
	}
	return grid, nil
}

// Parse decodes one snapshot from r. The format variant (text vs. binary,
// word width) is detected from the data block directive; binary blocks are
// verified against the leading sentinel under both byte orders before any
// value is accepted.
func Parse(r io.Reader) (*mag.FieldGrid, error) {
	rd := &reader{br: bufio.NewReader(r)}

	h, mode, err := parseHeader(rd)
	if err != nil {
		return nil, err
	}
	grid, err := h.grid()
	if err != nil {
		return nil, err
	}

	switch mode {
	case "text":
		err = parseTextData(rd, grid)
	case "binary 4":
		err = parseBinaryData(rd, grid, 4)
	case "binary 8":
		err = parseBinaryData(rd, grid, 8)
	default:
		return nil, &mag.ParseError{
			Detail:  fmt.Sprintf("data mode %q", mode),
			Wrapped: mag.ErrUnsupportedVariant,
		}
	}
	if err != nil {
		return nil, err
	}

	// NaN/Inf in decoded moments is a terminal error; all-zero rows are
	// tolerated here (declared background cells) but counted so callers
	// can flag anomalies.
	if err := grid.Validate(true); err != nil {
		return nil, err
	}
	zero := 0
	for i := 0; i < grid.Cells(); i++ {
		z := true
		for _, c := range grid.At(i) {
			if c != 0 {
				z = false
				break
			}
		}
		if z {
			zero++
		}
	}
	if zero > 0 {
		grid.Meta["zero_cells"] = mag.Number(float64(zero))
	}
	return grid, nil
}

func parseHeader(rd *reader) (*header, string, error) {
	h := &header{
		multiplier: 1,
		valueDim:   -1,
		meta:       map[string]mag.MetaValue{},
	}
	for i := range h.nodes {
		h.nodes[i] = -1
		h.step[i] = math.NaN()
		h.min[i] = math.NaN()
		h.max[i] = math.NaN()
	}

	sawSignature := false
	for {
		line, err := rd.readLine()
		if err == io.EOF {
			return nil, "", &mag.ParseError{
				Offset:  rd.offset,
				Detail:  "no data block before end of file",
				Wrapped: mag.ErrFormatTruncated,
			}
		}
		if err != nil {
			return nil, "", err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return nil, "", &mag.ParseError{
				Offset:  rd.offset,
				Detail:  fmt.Sprintf("unexpected non-comment line in header: %q", line),
				Wrapped: mag.ErrFormatCorruption,
			}
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			// Signature lines like "OOMMF OVF 2.0" carry no colon.
			if strings.Contains(strings.ToUpper(line), "OVF") {
				sawSignature = true
				h.meta["format"] = mag.String(line)
				continue
			}
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		switch key {
		case "oommf", "oommf ovf":
			sawSignature = true
			h.meta["format"] = mag.String(line)
			continue
		case "begin":
			v := strings.ToLower(value)
			if v == "data text" || strings.HasPrefix(v, "data binary") {
				if !sawSignature {
					return nil, "", &mag.ParseError{
						Offset:  rd.offset,
						Detail:  "missing OVF signature line",
						Wrapped: mag.ErrUnsupportedVariant,
					}
				}
				if err := h.validate(rd.offset); err != nil {
					return nil, "", err
				}
				return h, strings.TrimPrefix(v, "data "), nil
			}
			continue
		case "end":
			continue
		}

		if err := h.setField(key, value, rd.offset); err != nil {
			return nil, "", err
		}
	}
}

func (h *header) setField(key, value string, offset int64) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, &mag.ParseError{
				Offset:  offset,
				Field:   key,
				Detail:  fmt.Sprintf("integer expected, got %q", value),
				Wrapped: mag.ErrFormatCorruption,
			}
		}
		return n, nil
	}
	atof := func() (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, &mag.ParseError{
				Offset:  offset,
				Field:   key,
				Detail:  fmt.Sprintf("float expected, got %q", value),
				Wrapped: mag.ErrFormatCorruption,
			}
		}
		return v, nil
	}

	axis := -1
	switch key[0] {
	case 'x':
		axis = 0
	case 'y':
		axis = 1
	case 'z':
		axis = 2
	}

	var err error
	switch {
	case key == "meshtype":
		h.meshtype = strings.ToLower(value)
	case key == "valuedim":
		h.valueDim, err = atoi()
	case key == "valuemultiplier":
		h.multiplier, err = atof()
	case axis >= 0 && strings.HasSuffix(key, "nodes"):
		h.nodes[axis], err = atoi()
	case axis >= 0 && strings.HasSuffix(key, "stepsize"):
		h.step[axis], err = atof()
	case axis >= 0 && strings.HasSuffix(key, "min") && len(key) == 4:
		h.min[axis], err = atof()
	case axis >= 0 && strings.HasSuffix(key, "max") && len(key) == 4:
		h.max[axis], err = atof()
	case axis >= 0 && strings.HasSuffix(key, "base") && len(key) == 5:
		h.base[axis], err = atof()
		h.hasBase[axis] = true
	default:
		// Descriptive header fields are kept verbatim.
		h.meta[key] = mag.String(value)
	}
	return err
}

// validate checks the required header field set and the mutual consistency
// of bounding box, step size, and node counts.
func (h *header) validate(offset int64) error {
	missing := func(field string) error {
		return &mag.ParseError{
			Offset:  offset,
			Field:   field,
			Detail:  "required header field missing",
			Wrapped: mag.ErrFormatInconsistent,
		}
	}

	if h.meshtype == "" {
		return missing("meshtype")
	}
	if h.meshtype != "rectangular" {
		return &mag.ParseError{
			Offset:  offset,
			Field:   "meshtype",
			Detail:  fmt.Sprintf("meshtype %q not supported", h.meshtype),
			Wrapped: mag.ErrUnsupportedVariant,
		}
	}
	if h.valueDim < 0 {
		return missing("valuedim")
	}
	if h.valueDim < 1 {
		return &mag.ParseError{
			Offset:  offset,
			Field:   "valuedim",
			Detail:  fmt.Sprintf("valuedim %d, want >= 1", h.valueDim),
			Wrapped: mag.ErrFormatInconsistent,
		}
	}

	axes := [3]string{"x", "y", "z"}
	for a := 0; a < 3; a++ {
		switch {
		case h.nodes[a] < 0:
			return missing(axes[a] + "nodes")
		case math.IsNaN(h.step[a]):
			return missing(axes[a] + "stepsize")
		case math.IsNaN(h.min[a]):
			return missing(axes[a] + "min")
		case math.IsNaN(h.max[a]):
			return missing(axes[a] + "max")
		}
		if h.nodes[a] < 1 {
			return &mag.ParseError{
				Offset:  offset,
				Field:   axes[a] + "nodes",
				Detail:  fmt.Sprintf("node count %d, want >= 1", h.nodes[a]),
				Wrapped: mag.ErrFormatInconsistent,
			}
		}
		if h.step[a] <= 0 {
			return &mag.ParseError{
				Offset:  offset,
				Field:   axes[a] + "stepsize",
				Detail:  fmt.Sprintf("step size %g, want > 0", h.step[a]),
				Wrapped: mag.ErrFormatInconsistent,
			}
		}
		span := (h.max[a] - h.min[a]) / h.step[a]
		if math.Abs(span-float64(h.nodes[a])) > stepTolerance*float64(h.nodes[a]) {
			return &mag.ParseError{
				Offset: offset,
				Field:  axes[a] + "stepsize",
				Detail: fmt.Sprintf("bounding box spans %.9g steps, header declares %d nodes",
					span, h.nodes[a]),
				Wrapped: mag.ErrFormatInconsistent,
			}
		}
	}
	return nil
}

func (h *header) grid() (*mag.FieldGrid, error) {
	g := &mag.FieldGrid{
		Nx:              h.nodes[0],
		Ny:              h.nodes[1],
		Nz:              h.nodes[2],
		CellSize:        h.step,
		ValueDim:        h.valueDim,
		ValueMultiplier: h.multiplier,
		Meta:            h.meta,
	}
	for a := 0; a < 3; a++ {
		if h.hasBase[a] {
			g.Origin[a] = h.base[a]
		} else {
			g.Origin[a] = h.min[a] + h.step[a]/2
		}
	}
	g.Data = make([]float64, g.Cells()*g.ValueDim)
	return g, nil
}

func parseTextData(rd *reader, g *mag.FieldGrid) error {
	cells := g.Cells()
	row := 0
	for {
		line, err := rd.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			key := strings.ToLower(trimmed)
			if strings.Contains(key, "end") && strings.Contains(key, "data") {
				break
			}
			continue
		}

		if row >= cells {
			return &mag.ParseError{
				Offset:  rd.offset,
				Row:     row + 1,
				Detail:  fmt.Sprintf("more data rows than the %d cells the header declares", cells),
				Wrapped: mag.ErrFormatCorruption,
			}
		}

		fields := strings.Fields(trimmed)
		if len(fields) != g.ValueDim {
			return &mag.ParseError{
				Offset:  rd.offset,
				Row:     row + 1,
				Detail:  fmt.Sprintf("%d values on row, header declares valuedim %d", len(fields), g.ValueDim),
				Wrapped: mag.ErrFormatTruncated,
			}
		}
		for c, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return &mag.ParseError{
					Offset:  rd.offset,
					Row:     row + 1,
					Detail:  fmt.Sprintf("component %d: %q does not parse as float", c+1, tok),
					Wrapped: mag.ErrFormatCorruption,
				}
			}
			g.Data[row*g.ValueDim+c] = v
		}
		row++
	}

	if row != cells {
		return &mag.ParseError{
			Offset:  rd.offset,
			Row:     row,
			Detail:  fmt.Sprintf("%d data rows, header declares %d cells", row, cells),
			Wrapped: mag.ErrFormatTruncated,
		}
	}
	return nil
}

// parseBinaryData verifies the sentinel under little-endian first, then
// big-endian, and decodes the block in whichever order matched. The decoded
// grid is therefore identical for both byte orders of the same data.
func parseBinaryData(rd *reader, g *mag.FieldGrid, width int) error {
	sentinelOffset := rd.offset
	buf := make([]byte, width)
	if err := rd.readFull(buf); err != nil {
		return &mag.ParseError{
			Offset:  sentinelOffset,
			Detail:  "binary block ends before verification sentinel",
			Wrapped: mag.ErrFormatTruncated,
		}
	}

	var order binary.ByteOrder
	switch width {
	case 4:
		switch {
		case math.Float32frombits(binary.LittleEndian.Uint32(buf)) == Sentinel4:
			order = binary.LittleEndian
		case math.Float32frombits(binary.BigEndian.Uint32(buf)) == Sentinel4:
			order = binary.BigEndian
		}
	case 8:
		switch {
		case math.Float64frombits(binary.LittleEndian.Uint64(buf)) == Sentinel8:
			order = binary.LittleEndian
		case math.Float64frombits(binary.BigEndian.Uint64(buf)) == Sentinel8:
			order = binary.BigEndian
		}
	}
	if order == nil {
		return &mag.ParseError{
			Offset:  sentinelOffset,
			Detail:  fmt.Sprintf("verification sentinel mismatch for %d-byte words under both byte orders", width),
			Wrapped: mag.ErrFormatCorruption,
		}
	}

	values := g.Cells() * g.ValueDim
	data := make([]byte, values*width)
	if err := rd.readFull(data); err != nil {
		return &mag.ParseError{
			Offset:  rd.offset,
			Detail:  fmt.Sprintf("binary block shorter than the %d values the header declares", values),
			Wrapped: mag.ErrFormatTruncated,
		}
	}

	if width == 4 {
		for i := 0; i < values; i++ {
			g.Data[i] = float64(math.Float32frombits(order.Uint32(data[i*4:])))
		}
	} else {
		for i := 0; i < values; i++ {
			g.Data[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
	}
	return nil
}
