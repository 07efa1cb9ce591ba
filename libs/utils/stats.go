package utils

import (
	"sort"
)

// Summary 一组observation的统计，agent可以据此计算自己的estimate
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Avg    float64 `json:"avg"`
}

// Summarize returns the zero Summary for empty data. data is not modified.
func Summarize(data ...float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	return Summary{
		Count:  len(data),
		Min:    Min(data...),
		Max:    Max(data...),
		Median: Median(data...),
		Avg:    Avg(data...),
	}
}

func Max(data ...float64) float64 {
	if len(data) == 0 {
		return 0
	}

	res := data[0]
	for _, datum := range data {
		if datum > res {
			res = datum
		}
	}
	return res
}

func Min(data ...float64) float64 {
	if len(data) == 0 {
		return 0
	}

	res := data[0]
	for _, datum := range data {
		if datum < res {
			res = datum
		}
	}
	return res
}

// Median sorts a copy of data.
func Median(data ...float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func Avg(data ...float64) float64 {
	if len(data) == 0 {
		return 0
	}

	res := 0.0
	for _, datum := range data {
		res += datum
	}
	return res / float64(len(data))
}
