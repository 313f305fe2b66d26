package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minVariance is the threshold under which a column is treated as constant.
const minVariance = 1e-12

// Scaler standardizes columns to zero mean and unit population variance.
// A constant column has Scale 0 and always standardizes to 0.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column statistics from data.
func FitScaler(data *mat.Dense) *Scaler {
	_, cols := data.Dims()
	s := &Scaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, data)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		if variance > minVariance {
			s.Scale[j] = math.Sqrt(variance)
		}
	}
	return s
}

// Transform standardizes one row.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, x := range row {
		if j >= len(s.Scale) || s.Scale[j] == 0 {
			continue
		}
		out[j] = (x - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformAll standardizes every row of data.
func (s *Scaler) TransformAll(data *mat.Dense) [][]float64 {
	rows, _ := data.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = s.Transform(mat.Row(nil, i, data))
	}
	return out
}

// ConstantColumns returns the indexes of columns excluded from scaling.
func (s *Scaler) ConstantColumns() []int {
	var idx []int
	for j, scale := range s.Scale {
		if scale == 0 {
			idx = append(idx, j)
		}
	}
	return idx
}
