package skiplist

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSkipList(t *testing.T) {
	index := NewSkipList[int, string]()
	assert.NotNil(t, index, "SkipList should be initialized")
	assert.NotNil(t, index.head, "SkipList should have a head node")
	assert.NotNil(t, index.tail, "SkipList should have a tail node")
}

func TestInsertSkipList(t *testing.T) {
	// Object-ID-keyed index, the shape the definition registry uses.
	index := NewSkipList[int, string]()
	for id := 0; id < 10; id++ {
		name := fmt.Sprintf("Object %d", id)
		_, err := index.Upsert(id, func(key int, currValue string, exists bool) (newValue string, err error) {
			return name, nil
		})
		assert.NoError(t, err, "Upsert should not return an error")
	}
}

func TestSkipListUpsertAndFind(t *testing.T) {
	index := NewSkipList[string, int64]()

	// Counts writes per path, creating the entry on first sight.
	updateCheck := func(key string, currValue int64, exists bool) (newValue int64, err error) {
		if exists {
			return currValue + 1, nil
		}
		return 1, nil
	}

	updated, err := index.Upsert("/3/0/1", updateCheck)
	assert.NoError(t, err, "Upsert should not return an error")
	assert.True(t, updated, "Upsert should insert a new node")

	val, found := index.Find("/3/0/1")
	assert.True(t, found, "/3/0/1 should be found")
	assert.Equal(t, int64(1), val, "/3/0/1 should have value 1")

	updated, err = index.Upsert("/3/0/1", updateCheck)
	assert.NoError(t, err, "Upsert should not return an error when updating")
	assert.True(t, updated, "Upsert should update an existing node")

	val, found = index.Find("/3/0/1")
	assert.True(t, found, "/3/0/1 should be found after update")
	assert.Equal(t, int64(2), val, "/3/0/1 should have updated value 2")
}

func TestSkipListRemove(t *testing.T) {
	index := NewSkipList[string, int64]()

	set := func(v int64) UpdateCheck[string, int64] {
		return func(key string, currValue int64, exists bool) (newValue int64, err error) {
			return v, nil
		}
	}

	_, _ = index.Upsert("/3/0/1", set(10))
	_, _ = index.Upsert("/3/0/2", set(20))

	removedValue, removed := index.Remove("/3/0/1")
	assert.True(t, removed, "/3/0/1 should be removed")
	assert.Equal(t, int64(10), removedValue, "Removed value should be 10")

	_, found := index.Find("/3/0/1")
	assert.False(t, found, "/3/0/1 should not be found after removal")

	val, found := index.Find("/3/0/2")
	assert.True(t, found, "/3/0/2 should still be found")
	assert.Equal(t, int64(20), val, "/3/0/2 should have value 20")
}

func TestSkipListQuery(t *testing.T) {
	index := NewSkipList[string, int64]()

	set := func(v int64) UpdateCheck[string, int64] {
		return func(key string, currValue int64, exists bool) (newValue int64, err error) {
			return v, nil
		}
	}

	// Resources of one object instance, keyed by canonical path, the
	// way an operation's response view stores per-path results.
	_, _ = index.Upsert("/3/0/1", set(1))
	_, _ = index.Upsert("/3/0/2", set(2))
	_, _ = index.Upsert("/3/0/3", set(3))

	ctx := context.TODO()
	results, err := index.Query(ctx, "/3/0/1", "/3/0/3")
	assert.NoError(t, err, "Query should not return an error")
	assert.Equal(t, 3, len(results), "Query should return 3 results")

	// Query returns values in ascending key order.
	assert.Equal(t, int64(1), results[0], "/3/0/1 should come first")
	assert.Equal(t, int64(2), results[1], "/3/0/2 should come second")
	assert.Equal(t, int64(3), results[2], "/3/0/3 should come third")
}

func TestSkipListQueryWithEndRange(t *testing.T) {
	index := NewSkipList[string, int64]()

	set := func(v int64) UpdateCheck[string, int64] {
		return func(key string, currValue int64, exists bool) (newValue int64, err error) {
			return v, nil
		}
	}

	// Instances of two objects; the range picks out object 3's prefix
	// only, the lookup countInstances does on the static client.
	_, _ = index.Upsert("/3/0", set(1))
	_, _ = index.Upsert("/3/1", set(2))
	_, _ = index.Upsert("/4/0", set(3))

	ctx := context.TODO()
	results, err := index.Query(ctx, "/3/", "/3/\xff")
	assert.NoError(t, err, "Query should not return an error")
	assert.Equal(t, 2, len(results), "Query should return object 3's two instances only")

	assert.Equal(t, int64(1), results[0], "First value should be /3/0's")
	assert.Equal(t, int64(2), results[1], "Second value should be /3/1's")
}

func TestSkipListConcurrency(t *testing.T) {
	index := NewSkipList[string, int64]()
	ctx := context.TODO()

	updateCheck := func(key string, currValue int64, exists bool) (newValue int64, err error) {
		if exists {
			return currValue + 1, nil
		}
		return 1, nil
	}

	// Concurrent upserts across 100 object-instance paths.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = index.Upsert(fmt.Sprintf("/7997/%d", i), updateCheck)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		_, found := index.Find(fmt.Sprintf("/7997/%d", i))
		assert.True(t, found, "Path should be found after concurrent upserts")
	}

	// Concurrent range queries while the index is fully populated.
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := index.Query(ctx, "/7997/0", fmt.Sprintf("/7997/%d", i))
			assert.NoError(t, err, "Query should not return an error")
			assert.True(t, len(results) > 0, "Query should return results")
		}(i)
	}
	wg.Wait()
}
