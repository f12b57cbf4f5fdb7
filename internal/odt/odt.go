// Package odt decodes columnar scalar time-series logs: a header line
// naming the columns (optionally with a unit annotation in parentheses or
// brackets) followed by whitespace/tab-separated rows of floats.
package odt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alawein/maglogic/internal/mag"
)

// ParseFile decodes the table at path.
func ParseFile(path string) (*mag.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ts, err := Parse(f)
	if err != nil {
		if pe, ok := err.(*mag.ParseError); ok {
			pe.Path = path
			return nil, pe
		}
		return nil, err
	}
	return ts, nil
}

// Parse decodes one table from r. The first non-blank line is the column
// header; subsequent "# key: value" lines are run metadata; every other
// line is a data row with one float per column.
func Parse(r io.Reader) (*mag.TimeSeries, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	ts := &mag.TimeSeries{
		Columns: map[string][]float64{},
		Meta:    map[string]mag.MetaValue{},
	}

	var units []string
	headerDone := false
	dataRow := 0

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !headerDone {
			names, us := splitHeader(strings.TrimSpace(strings.TrimPrefix(line, "#")))
			if len(names) == 0 {
				return nil, &mag.ParseError{
					Detail:  "empty column header",
					Wrapped: mag.ErrFormatTruncated,
				}
			}
			ts.Names = disambiguate(names, ts.Meta)
			units = us
			for _, n := range ts.Names {
				ts.Columns[n] = nil
			}
			headerDone = true
			continue
		}

		if strings.HasPrefix(line, "#") {
			// Metadata or structural comment lines after the header.
			body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if key, value, ok := strings.Cut(body, ":"); ok {
				key = strings.TrimSpace(key)
				if key != "" {
					ts.Meta[strings.ToLower(key)] = mag.String(strings.TrimSpace(value))
				}
			}
			continue
		}

		dataRow++
		fields := strings.Fields(line)
		if len(fields) != len(ts.Names) {
			return nil, &mag.ParseError{
				Row:     dataRow,
				Detail:  fmt.Sprintf("%d values, header names %d columns", len(fields), len(ts.Names)),
				Wrapped: mag.ErrFormatTruncated,
			}
		}
		for c, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, &mag.ParseError{
					Row:     dataRow,
					Column:  ts.Names[c],
					Detail:  fmt.Sprintf("%q does not parse as float", tok),
					Wrapped: mag.ErrFormatCorruption,
				}
			}
			ts.Columns[ts.Names[c]] = append(ts.Columns[ts.Names[c]], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !headerDone {
		return nil, &mag.ParseError{
			Detail:  "empty input",
			Wrapped: mag.ErrFormatTruncated,
		}
	}

	ts.Rows = dataRow
	for _, u := range units {
		if u != "" {
			ts.Meta["units"] = mag.Strings(units)
			break
		}
	}
	return ts, nil
}

// splitHeader tokenizes the header line into column names and their unit
// annotations. A name is a run of non-space characters; an immediately
// following "(unit)" or "[unit]" group annotates it and is stripped from
// the name. Column order is file order.
func splitHeader(line string) (names, units []string) {
	tokens := strings.Fields(line)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		name, unit := tok, ""

		// Unit attached without a space: "E_total(J)".
		if j := strings.IndexAny(tok, "(["); j > 0 {
			name = tok[:j]
			unit = trimUnit(tok[j:])
		} else if i+1 < len(tokens) && isUnitToken(tokens[i+1]) {
			// Unit as its own token: "t (s)".
			unit = trimUnit(tokens[i+1])
			i++
		}

		names = append(names, strings.TrimSpace(name))
		units = append(units, unit)
	}
	return names, units
}

func isUnitToken(tok string) bool {
	return (strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")")) ||
		(strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]"))
}

func trimUnit(tok string) string {
	return strings.Trim(tok, "()[]")
}

// disambiguate makes column names unique. Names are compared after trimming
// and lowercasing; duplicates get a numeric suffix (_2, _3, ...) in file
// order, and every rename is recorded in meta["renamed_columns"] so callers
// can detect the collision.
func disambiguate(names []string, meta map[string]mag.MetaValue) []string {
	seen := map[string]int{}
	var renames []string

	out := make([]string, len(names))
	for i, name := range names {
		norm := strings.ToLower(strings.TrimSpace(name))
		seen[norm]++
		if seen[norm] == 1 {
			out[i] = name
			continue
		}
		final := fmt.Sprintf("%s_%d", name, seen[norm])
		for seen[strings.ToLower(final)] > 0 {
			seen[norm]++
			final = fmt.Sprintf("%s_%d", name, seen[norm])
		}
		seen[strings.ToLower(final)] = 1
		renames = append(renames, fmt.Sprintf("%s->%s", name, final))
		out[i] = final
	}

	if len(renames) > 0 {
		meta["renamed_columns"] = mag.Strings(renames)
	}
	return out
}
