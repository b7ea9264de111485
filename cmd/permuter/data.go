package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// Dataset is a numeric table split into features and a target column.
type Dataset struct {
	Features []string
	X        *mat.Dense
	Y        *mat.Dense
}

// LoadCSVFile reads a dataset from path. See ReadCSV.
func LoadCSVFile(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f, target)
}

// ReadCSV reads a CSV with a header row. Every cell must parse as a float;
// the target column becomes y and the remaining columns X, in file order.
func ReadCSV(r io.Reader, target string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	targetIdx := -1
	var features []string
	for i, name := range header {
		if name == target {
			targetIdx = i
			continue
		}
		features = append(features, name)
	}
	if targetIdx < 0 {
		return nil, errors.NewValidationError("target", "column not found in header", target)
	}
	if len(features) == 0 {
		return nil, errors.NewValueError("ReadCSV", "no feature columns")
	}

	var xData, yData []float64
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewValueError("ReadCSV",
					"line "+strconv.Itoa(line)+", column "+header[i]+": "+err.Error())
			}
			if i == targetIdx {
				yData = append(yData, v)
			} else {
				xData = append(xData, v)
			}
		}
	}
	if len(yData) == 0 {
		return nil, errors.ErrEmptyData
	}

	return &Dataset{
		Features: features,
		X:        mat.NewDense(len(yData), len(features), xData),
		Y:        mat.NewDense(len(yData), 1, yData),
	}, nil
}
