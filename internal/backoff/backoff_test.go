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

package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesPerAttempt(t *testing.T) {
	p := New(time.Second, time.Minute)
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestDelayCapsAtMax(t *testing.T) {
	p := New(time.Second, 5*time.Second)
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestDelayTreatsSubOneAttemptAsFirst(t *testing.T) {
	p := New(time.Second, time.Minute)
	assert.Equal(t, p.Delay(1), p.Delay(0))
}
