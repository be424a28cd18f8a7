package symbolindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntern_StableAcrossCalls(t *testing.T) {
	ix := New(16)

	first := ix.Intern("AAPL")
	second := ix.Intern("AAPL")

	assert.NotEqual(t, InvalidID, first)
	assert.Equal(t, first, second)
}

func TestIntern_DistinctSymbolsGetDistinctIDs(t *testing.T) {
	ix := New(16)

	a := ix.Intern("AAPL")
	b := ix.Intern("MSFT")

	assert.NotEqual(t, a, b)
}

func TestIntern_RejectsOverlongSymbol(t *testing.T) {
	ix := New(16)
	assert.Equal(t, InvalidID, ix.Intern("TOOLONGSYMBOL"))
}

func TestLookup_UnknownSymbolReturnsInvalid(t *testing.T) {
	ix := New(16)
	assert.Equal(t, InvalidID, ix.Lookup("AAPL"))

	ix.Intern("AAPL")
	assert.Equal(t, ix.Intern("AAPL"), ix.Lookup("AAPL"))
}

// Scenario 5 from spec.md §8, scaled down to a small table.
func TestIntern_TableFullReturnsInvalid(t *testing.T) {
	ix := New(4)

	for i := 0; i < 4; i++ {
		id := ix.Intern(fmt.Sprintf("S%d", i))
		require.NotEqual(t, InvalidID, id)
	}

	assert.Equal(t, InvalidID, ix.Intern("OVERFLOW"))
}

func TestIntern_ConcurrentInternOfSameSymbolConverges(t *testing.T) {
	ix := New(64)

	var wg sync.WaitGroup
	ids := make([]SymbolID, 100)
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i] = ix.Intern("AAPL")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, ix.Len())
}

func TestIntern_ConcurrentDistinctSymbolsAllSucceed(t *testing.T) {
	ix := New(256)

	var wg sync.WaitGroup
	seen := make([]SymbolID, 200)
	wg.Add(200)
	for i := 0; i < 200; i++ {
		go func(i int) {
			defer wg.Done()
			seen[i] = ix.Intern(fmt.Sprintf("S%d", i))
		}(i)
	}
	wg.Wait()

	unique := make(map[SymbolID]bool)
	for _, id := range seen {
		require.NotEqual(t, InvalidID, id)
		unique[id] = true
	}
	assert.Len(t, unique, 200)
}
