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

package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopOrdersByPriorityDescending(t *testing.T) {
	q := New()
	q.Push(&Task{FileID: "f", Index: 0, Priority: 1})
	q.Push(&Task{FileID: "f", Index: 1, Priority: 5})
	q.Push(&Task{FileID: "f", Index: 2, Priority: 3})

	first, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 5, first.Priority)

	second, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 3, second.Priority)

	third, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, third.Priority)
}

func TestPopTiesBrokenByIndexThenInsertionOrder(t *testing.T) {
	q := New()
	q.Push(&Task{FileID: "f", Index: 3, Priority: 2})
	q.Push(&Task{FileID: "f", Index: 1, Priority: 2})
	q.Push(&Task{FileID: "f", Index: 2, Priority: 2})

	first, _ := q.TryPop()
	second, _ := q.TryPop()
	third, _ := q.TryPop()
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, 3, third.Index)

	q.Push(&Task{FileID: "a", Index: 0, Priority: 2})
	q.Push(&Task{FileID: "b", Index: 0, Priority: 2})
	earlier, _ := q.TryPop()
	later, _ := q.TryPop()
	assert.Equal(t, "a", earlier.FileID)
	assert.Equal(t, "b", later.FileID)
}

func TestTryPopEmptyReturnsFalse(t *testing.T) {
	q := New()
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestConcurrentPushPopDoesNotLoseTasks(t *testing.T) {
	q := New()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push(&Task{FileID: "f", Index: i, Priority: i % 5})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, q.Len())

	popped := 0
	for {
		_, ok := q.TryPop()
		if !ok {
			break
		}
		popped++
	}
	assert.Equal(t, n, popped)
}
