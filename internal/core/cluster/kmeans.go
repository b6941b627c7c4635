package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/similarity"
)

// DefaultMaxIterations は k-means の反復上限
// 上限に達した場合は未収束の分割を返す
const DefaultMaxIterations = 100

// Partition は k-means の結果
type Partition struct {
	Assignments []int
	Centroids   [][]float64
	Iterations  int
	Converged   bool
}

// KMeans はユークリッド距離による k-means を実行する
// 初期重心は既存の点から一様ランダムに選ぶ。空になったクラスタには重心から最も遠い点を割り当て直す
func KMeans(vectors [][]float32, k, maxIterations int, rng *rand.Rand) (*Partition, error) {
	n := len(vectors)
	if n == 0 {
		return nil, errs.InvalidInput("cluster.KMeans", "no vectors to cluster")
	}
	if k < 1 || k > n {
		return nil, errs.InvalidInput("cluster.KMeans", "k must be between 1 and %d, got %d", n, k)
	}
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	centroids := make([][]float64, k)
	for c, idx := range rng.Perm(n)[:k] {
		centroids[c] = toFloat64(vectors[idx])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	part := &Partition{Assignments: assignments, Centroids: centroids}

	for iter := 1; iter <= maxIterations; iter++ {
		part.Iterations = iter

		changed := false
		for i, v := range vectors {
			nearest := nearestCentroid(v, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed = true
			}
		}
		if !changed {
			part.Converged = true
			break
		}

		recomputeCentroids(vectors, assignments, centroids)
	}

	return part, nil
}

func nearestCentroid(v []float32, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func recomputeCentroids(vectors [][]float32, assignments []int, centroids [][]float64) {
	dim := len(vectors[0])
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for d, x := range v {
			sums[c][d] += float64(x)
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
		centroids[c] = sums[c]
	}

	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far := farthestMovablePoint(vectors, assignments, centroids, counts)
		if far < 0 {
			continue
		}
		counts[assignments[far]]--
		assignments[far] = c
		counts[c] = 1
		centroids[c] = toFloat64(vectors[far])
	}
}

// farthestMovablePoint は2点以上を持つクラスタの中で、重心から最も遠い点を返す
func farthestMovablePoint(vectors [][]float32, assignments []int, centroids [][]float64, counts []int) int {
	far, farDist := -1, -1.0
	for i, v := range vectors {
		c := assignments[i]
		if counts[c] < 2 {
			continue
		}
		if d := squaredDistance(v, centroids[c]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

// Inertia はクラスタ内二乗誤差の総和を返す
func Inertia(vectors [][]float32, part *Partition) float64 {
	total := 0.0
	for i, v := range vectors {
		total += squaredDistance(v, part.Centroids[part.Assignments[i]])
	}
	return total
}

// Silhouette は全点のシルエット係数の平均を返す
// 要素が1つのクラスタに属する点は 0 とする。クラスタが1つしかない場合も 0
func Silhouette(vectors [][]float32, assignments []int, k int) (float64, error) {
	n := len(vectors)
	if n == 0 {
		return 0, nil
	}

	sizes := make([]int, k)
	for _, c := range assignments {
		sizes[c]++
	}

	total := 0.0
	for i := range vectors {
		own := assignments[i]
		if sizes[own] < 2 {
			continue
		}

		sums := make([]float64, k)
		for j := range vectors {
			if i == j {
				continue
			}
			d, err := similarity.Euclidean(vectors[i], vectors[j])
			if err != nil {
				return 0, err
			}
			sums[assignments[j]] += d
		}

		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := range sums {
			if c == own || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(sizes[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}

	return total / float64(n), nil
}

func checkDimensions(vectors [][]float32) error {
	dim := len(vectors[0])
	if dim == 0 {
		return errs.InvalidInput("cluster.KMeans", "empty vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return errs.InvalidInput("cluster.KMeans", "vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}

func squaredDistance(v []float32, c []float64) float64 {
	sum := 0.0
	for d, x := range v {
		diff := float64(x) - c[d]
		sum += diff * diff
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
