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

package gomath

import "math"

// Vector is a single data point in the original feature space.
type Vector []float64

const MaxFloat = math.MaxFloat64
const MaxIntVal = int((^uint(0)) >> 1)
const MinIntVal = -MaxIntVal - 1

func Square(x float64) float64 {
	return x * x
}

// RoundInt rounds half away from zero. The neighbor-count rule
// k = round(3 * perplexity) depends on this behavior.
func RoundInt(x float64) int {
	return int(math.Round(x))
}

func Min(values ...float64) float64 {
	min := MaxFloat
	for _, value := range values {
		if value < min {
			min = value
		}
	}
	return min
}

func MinInt(values ...int) int {
	min := MaxIntVal
	for _, value := range values {
		if value < min {
			min = value
		}
	}
	return min
}

func Max(values ...float64) float64 {
	max := -MaxFloat
	for _, value := range values {
		if value > max {
			max = value
		}
	}
	return max
}

func MaxInt(values ...int) int {
	max := MinIntVal
	for _, value := range values {
		if value > max {
			max = value
		}
	}
	return max
}
