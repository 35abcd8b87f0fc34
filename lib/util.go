package lib

import (
	"bytes"
	"encoding/gob"
	"math"
	"os"
)

// Grid is the manufacturing grid every emitted coordinate lands on.
const Grid = 0.005

// Precision is the number of decimals kept at emission time.
const Precision = 5

func Exists(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	} else if os.IsNotExist(err) {
		return false
	}

	return true
}

/*
	return an encoded object as bytes
*/
func Marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	err := gob.NewEncoder(b).Encode(v)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

/*
	return a decoded object from bytes
*/
func Unmarshal(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	return gob.NewDecoder(b).Decode(v)
}

// Snap rounds v to the nearest multiple of grid.
func Snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return Round(math.Round(v/grid)*grid, Precision)
}

// SnapUp rounds v up to the next multiple of grid.
func SnapUp(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	q := v / grid
	if math.Abs(q-math.Round(q)) < 1e-9 {
		return Snap(v, grid)
	}
	return Round(math.Ceil(q)*grid, Precision)
}

// Round rounds v to the given number of decimals. Negative zero is folded
// to zero so encoded output stays byte-stable.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}
