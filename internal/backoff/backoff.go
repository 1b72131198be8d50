// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backoff computes the retry delay of spec §4.6/P6: exponential
// backoff with a ceiling, no jitter. It wraps
// github.com/cenkalti/backoff/v4's ExponentialBackOff as a pure function
// rather than driving retries itself, since the Executor owns the retry
// loop (claim/requeue happen through the Gateway, not through a local
// retry callback).
package backoff

import (
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// Policy computes retry delays as base * 2^(attempts-1), capped at max.
type Policy struct {
	base time.Duration
	max  time.Duration
	eb   *cenkalti.ExponentialBackOff
}

// New builds a Policy from the configured base and max backoff durations.
func New(base, max time.Duration) *Policy {
	eb := cenkalti.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = max
	eb.MaxElapsedTime = 0
	return &Policy{base: base, max: max, eb: eb}
}

// Delay returns the delay to wait before the given attempt number
// (1-indexed: the first retry after an initial failure is attempt 1).
// It never exceeds the configured max.
func (p *Policy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	p.eb.Reset()
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = p.eb.NextBackOff()
	}
	if d == cenkalti.Stop || d > p.max {
		return p.max
	}
	return d
}
