package pkg

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type entry struct {
	Index int
	Name  string
}

func TestJournal_AppendAndRange(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(entry{Index: 0, Name: "a"}))
	require.NoError(t, j.Append(entry{Index: 1, Name: "b"}))
	require.Equal(t, uint64(2), j.Len())

	var got []entry
	err = j.Range(func(_ uint64, item entry) error {
		got = append(got, item)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []entry{{Index: 0, Name: "a"}, {Index: 1, Name: "b"}}, got)
}

func TestJournal_AppendBatch(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)
	defer j.Close()

	items := []entry{{Index: 0}, {Index: 1}, {Index: 2}}
	require.NoError(t, j.AppendBatch(items))
	require.Equal(t, uint64(3), j.Len())
}

func TestJournal_RangeStopsOnCallbackError(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AppendBatch([]entry{{Index: 0}, {Index: 1}, {Index: 2}}))

	sentinel := errors.New("stop")
	visited := 0

	err = j.Range(func(index uint64, _ entry) error {
		visited++
		if index == 1 {
			return sentinel
		}
		return nil
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 2, visited)
}

func TestJournal_EmptyRange(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)
	defer j.Close()

	err = j.Range(func(uint64, entry) error {
		t.Fatal("callback should not run on empty journal")
		return nil
	})
	require.NoError(t, err)
}

func TestJournal_ConcurrentAppend(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)
	defer j.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range 10 {
				_ = j.Append(entry{Index: i*10 + k})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(80), j.Len())
}

func TestJournal_CloseIsIdempotent(t *testing.T) {
	j, err := NewJournal[entry]()
	require.NoError(t, err)

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
}
