// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LoadCSVToTimeSeries loads a CSV file into a 1-D TimeSeries.
// With variable set, the column of that name is taken as the series. With
// spatialMean set instead, all columns are averaged per row, the tabular
// equivalent of reducing a gridded field over its spatial dimensions.
func LoadCSVToTimeSeries(path, variable string, spatialMean bool) (*TimeSeries, error) {
	// 1. Open file
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// 2. Make CSV reader
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	// 3. Read header row
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("empty header in %s", path)
	}
	K := len(header)

	varIdx := -1
	name := "spatial_mean"
	if variable != "" {
		for j, h := range header {
			if h == variable {
				varIdx = j
				break
			}
		}
		if varIdx < 0 {
			return nil, fmt.Errorf("column %q not found in %s", variable, path)
		}
		name = variable
	} else if !spatialMean {
		if K != 1 {
			return nil, fmt.Errorf(
				"%s has %d columns; set variable or spatial_mean to reduce to one series",
				path, K,
			)
		}
		varIdx = 0
		name = header[0]
	}

	var (
		values []float64
		times  []float64
		row    int
	)

	// 4. Read each data row
	rowVals := make([]float64, K)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}

		// Skip completely empty lines
		if len(record) == 1 && record[0] == "" {
			continue
		}

		if len(record) != K {
			return nil, fmt.Errorf(
				"row %d: expected %d columns, got %d",
				row+2, K, len(record),
			)
		}

		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf(
					"parse float at row %d col %d (%q): %w",
					row+2, j+1, s, err,
				)
			}
			rowVals[j] = v
		}

		if varIdx >= 0 {
			values = append(values, rowVals[varIdx])
		} else {
			values = append(values, stat.Mean(rowVals, nil))
		}
		times = append(times, float64(row))
		row++
	}

	if row == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	return &TimeSeries{
		Values: values,
		Time:   times,
		Name:   name,
	}, nil
}

// PrintBundleSummary prints per-measure matrix statistics for a quick sanity
// read of one grid run.
func PrintBundleSummary(b *MeasurementBundle, scales []int) {
	fmt.Println("\n=== Coupling Measure Summary ===")
	fmt.Printf("Scale grid: %d..%d (%d scales)\n\n", scales[0], scales[len(scales)-1], len(scales))
	fmt.Printf("%-32s | %-4s | %10s %10s %10s\n", "Measure", "Est", "min", "max", "mean")
	fmt.Println("--------------------------------------------------------------------------")

	for _, m := range b.orderedMeasures() {
		for _, e := range []struct {
			tag string
			mx  *mat.Dense
		}{{"eqq", m.pair.EQQ}, {"knn", m.pair.KNN}} {
			lo, hi, mean := matrixStats(e.mx)
			fmt.Printf("%-32s | %-4s | %10.5f %10.5f %10.5f\n", m.name, e.tag, lo, hi, mean)
		}
	}
	fmt.Println()
}

func matrixStats(m *mat.Dense) (min, max, mean float64) {
	r, c := m.Dims()
	min = m.At(0, 0)
	max = min
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
	}
	return min, max, sum / float64(r*c)
}
