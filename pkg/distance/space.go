// Licensed to toddrme2178 under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. toddrme2178 licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package distance

import (
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek"

	"github.com/toddrme2178/fastTSNE/pkg/gomath"
)

// Space computes the distance between two points. Implementations are
// stateless and safe for concurrent use.
type Space interface {
	Distance(a, b gomath.Vector) float64
}

// Params carries auxiliary metric configuration.
type Params struct {
	// P is the Minkowski exponent. Ignored by other metrics.
	P float64
}

type Euclidean struct{}

func (Euclidean) Distance(a, b gomath.Vector) float64 {
	return vek.Distance(a, b)
}

func (Euclidean) String() string {
	return "euclidean"
}

type SqEuclidean struct{}

func (SqEuclidean) Distance(a, b gomath.Vector) float64 {
	return gomath.Square(vek.Distance(a, b))
}

func (SqEuclidean) String() string {
	return "sqeuclidean"
}

type Manhattan struct{}

func (Manhattan) Distance(a, b gomath.Vector) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

func (Manhattan) String() string {
	return "manhattan"
}

type Cosine struct{}

func (Cosine) Distance(a, b gomath.Vector) float64 {
	return 1 - vek.CosineSimilarity(a, b)
}

func (Cosine) String() string {
	return "cosine"
}

type Chebyshev struct{}

func (Chebyshev) Distance(a, b gomath.Vector) float64 {
	var max float64
	for i := range a {
		if v := math.Abs(a[i] - b[i]); v > max {
			max = v
		}
	}
	return max
}

func (Chebyshev) String() string {
	return "chebyshev"
}

type Minkowski struct {
	P float64
}

func (m Minkowski) Distance(a, b gomath.Vector) float64 {
	var sum float64
	for i := range a {
		sum += math.Pow(math.Abs(a[i]-b[i]), m.P)
	}
	return math.Pow(sum, 1/m.P)
}

func (m Minkowski) String() string {
	return "minkowski"
}

var metrics = map[string]func(Params) Space{
	"euclidean":   func(Params) Space { return Euclidean{} },
	"l2":          func(Params) Space { return Euclidean{} },
	"sqeuclidean": func(Params) Space { return SqEuclidean{} },
	"manhattan":   func(Params) Space { return Manhattan{} },
	"l1":          func(Params) Space { return Manhattan{} },
	"cosine":      func(Params) Space { return Cosine{} },
	"chebyshev":   func(Params) Space { return Chebyshev{} },
	"minkowski": func(p Params) Space {
		if p.P <= 0 {
			p.P = 2
		}
		// Exponents below 1 break the triangle inequality, which the
		// tree-based search depends on.
		if p.P < 1 {
			p.P = 1
		}
		return Minkowski{P: p.P}
	},
}

// ValidMetrics lists the recognized metric names in sorted order.
func ValidMetrics() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidMetric reports whether the metric name is recognized.
func IsValidMetric(name string) bool {
	_, ok := metrics[name]
	return ok
}

// FromName resolves a metric name against the allow-list. Unknown names
// are a configuration error, reported before any index build happens.
func FromName(name string, params Params) (Space, error) {
	build, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("unrecognized distance metric `%s`, choose one of %v", name, ValidMetrics())
	}
	return build(params), nil
}
