package model

import (
	"fmt"
	"math"
)

// Metric 是物品向量之间的相似度度量。
type Metric string

const (
	// MetricCosine 余弦相似度：dot(a,b) / (‖a‖·‖b‖)
	MetricCosine Metric = "cosine"
	// MetricPearson 皮尔逊相关系数：先按向量均值中心化，再算余弦
	MetricPearson Metric = "pearson"
)

// ParseMetric 解析配置中的度量名，空串取 cosine。
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricPearson:
		return MetricPearson, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q (supported: cosine, pearson)", s)
	}
}

// prepare 把物品向量变换成“直接做余弦即可”的形式。
// cosine 原样返回；pearson 返回中心化后的副本。
func (m Metric) prepare(vec []float64) []float64 {
	if m != MetricPearson || len(vec) == 0 {
		return vec
	}
	var mean float64
	for _, v := range vec {
		mean += v
	}
	mean /= float64(len(vec))

	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v - mean
	}
	return out
}

func norm(vec []float64) float64 {
	var s float64
	for _, v := range vec {
		s += v * v
	}
	return math.Sqrt(s)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// cosine 计算余弦相似度，任一向量模为 0 时返回 0（而不是 NaN）。
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot(a, b) / (normA * normB)
}
