package setpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/norasector/fluxvault/pkg/fluxvault"
)

// Column names of a field export: Time, Mag X, Mag Y, Mag Z. Time is
// carried for reference only; rows are transmitted in file order.
const (
	ColumnX = "mag x"
	ColumnY = "mag y"
	ColumnZ = "mag z"
)

func LoadCSVFile(path string) ([]fluxvault.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f)
}

func LoadCSV(r io.Reader) ([]fluxvault.Triple, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("setpoint csv: missing header")
		}
		return nil, fmt.Errorf("setpoint csv: read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var idx [3]int
	for i, name := range []string{ColumnX, ColumnY, ColumnZ} {
		col, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("setpoint csv: missing column %q", name)
		}
		idx[i] = col
	}

	var out []fluxvault.Triple
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("setpoint csv: line %d: %w", line, err)
		}

		var vals [3]float32
		for i, col := range idx {
			if col >= len(rec) {
				return nil, fmt.Errorf("setpoint csv: line %d: missing field %d", line, col+1)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 32)
			if err != nil {
				return nil, fmt.Errorf("setpoint csv: line %d: %w", line, err)
			}
			vals[i] = float32(v)
		}
		out = append(out, fluxvault.Triple{X: vals[0], Y: vals[1], Z: vals[2]})
	}
	return out, nil
}
