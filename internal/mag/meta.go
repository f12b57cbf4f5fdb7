package mag

import (
	"fmt"
	"strings"
)

// MetaKind discriminates the payload of a MetaValue.
type MetaKind int

const (
	MetaString MetaKind = iota
	MetaNumber
	MetaNumberList
	MetaStringList
)

// MetaValue is a tagged variant for header metadata: a string, a number,
// or a homogeneous list of either. File headers carry mixed-type key/value
// pairs and this keeps them typed without resorting to bare interface maps.
type MetaValue struct {
	kind    MetaKind
	str     string
	num     float64
	numList []float64
	strList []string
}

func String(s string) MetaValue      { return MetaValue{kind: MetaString, str: s} }
func Number(v float64) MetaValue     { return MetaValue{kind: MetaNumber, num: v} }
func Numbers(vs []float64) MetaValue { return MetaValue{kind: MetaNumberList, numList: vs} }
func Strings(ss []string) MetaValue  { return MetaValue{kind: MetaStringList, strList: ss} }

func (v MetaValue) Kind() MetaKind { return v.kind }

// AsString returns the string payload, or "" if the value is not a string.
func (v MetaValue) AsString() (string, bool) {
	return v.str, v.kind == MetaString
}

// AsNumber returns the numeric payload, or 0 if the value is not a number.
func (v MetaValue) AsNumber() (float64, bool) {
	return v.num, v.kind == MetaNumber
}

func (v MetaValue) AsNumbers() ([]float64, bool) {
	return v.numList, v.kind == MetaNumberList
}

func (v MetaValue) AsStrings() ([]string, bool) {
	return v.strList, v.kind == MetaStringList
}

func (v MetaValue) String() string {
	switch v.kind {
	case MetaString:
		return v.str
	case MetaNumber:
		return fmt.Sprintf("%g", v.num)
	case MetaNumberList:
		parts := make([]string, len(v.numList))
		for i, n := range v.numList {
			parts[i] = fmt.Sprintf("%g", n)
		}
		return strings.Join(parts, " ")
	case MetaStringList:
		return strings.Join(v.strList, " ")
	}
	return ""
}

// Plain converts the value to a plain Go value (string, float64, []float64,
// or []string) for interchange serialization.
func (v MetaValue) Plain() any {
	switch v.kind {
	case MetaString:
		return v.str
	case MetaNumber:
		return v.num
	case MetaNumberList:
		return v.numList
	case MetaStringList:
		return v.strList
	}
	return nil
}
