package policy

import (
	"testing"
	"time"

	"github.com/dsmmcken/jumbomem/internal/pagetable"
	"github.com/stretchr/testify/require"
)

func TestFIFOEvictsInAdmissionOrder(t *testing.T) {
	capacity := 4
	table := pagetable.New(capacity)
	f := NewFIFO(capacity)

	// Fill the cache touching pages in strictly increasing order.
	for i := uint32(0); i < uint32(capacity); i++ {
		d := f.Admit(table, i)
		require.False(t, d.HasVictim)
	}

	// From here, evictions must happen in the same order as admissions.
	var victims []uint32
	for i := uint32(capacity); i < uint32(capacity)+3; i++ {
		d := f.Admit(table, i)
		require.True(t, d.HasVictim)
		victims = append(victims, d.Victim)
	}

	require.Equal(t, []uint32{0, 1, 2}, victims)
}

func TestRandomNeverEvictsMostRecentAdmission(t *testing.T) {
	capacity := 3
	table := pagetable.New(capacity)
	r := NewRandom(capacity, 7)

	for i := uint32(0); i < uint32(capacity); i++ {
		r.Admit(table, i)
	}

	for i := uint32(capacity); i < uint32(capacity)+50; i++ {
		d := r.Admit(table, i)
		require.True(t, d.HasVictim)
		// i-1 is the page admitted by the previous call.
		require.NotEqual(t, i-1, d.Victim)
	}
}

func TestNREAvoidsRecentHistoryUnlessRetriesExhausted(t *testing.T) {
	capacity := 5
	table := pagetable.New(capacity)
	n := NewNRE(capacity, 4, 5, 11)

	for i := uint32(0); i < uint32(capacity); i++ {
		n.Admit(table, i)
	}

	evicted := map[uint32]bool{}
	for i := uint32(capacity); i < uint32(capacity)+20; i++ {
		d := n.Admit(table, i)
		require.True(t, d.HasVictim)

		// Every faulting page here is new, so no resident page is ever
		// in the history; this loop checks only that each admission
		// into a full cache evicts.
		evicted[d.Victim] = true
	}
	require.NotEmpty(t, evicted)

	// Re-admitting evicted pages puts history entries back in the
	// cache. With capacity=2 and K=2: evict v, then x; admitting x
	// leaves {y, v} resident with v in the history, so with ample
	// retries the victim is y, never v.
	table2 := pagetable.New(2)
	n2 := NewNRE(2, 2, 1000, 11)
	n2.Admit(table2, 0)
	n2.Admit(table2, 1)
	v := n2.Admit(table2, 2).Victim
	x := n2.Admit(table2, v).Victim
	d := n2.Admit(table2, x)
	require.True(t, d.HasVictim)
	require.NotEqual(t, v, d.Victim, "a page in the eviction history must be skipped while retries remain")
}

func TestNRUSweepAndWriteUpgrade(t *testing.T) {
	capacity := 4
	table := pagetable.New(capacity)
	n := NewNRU(capacity, 5, false) // 5ms interval so the test can force a sweep

	for i := uint32(0); i < uint32(capacity); i++ {
		d := n.Admit(table, i)
		require.Equal(t, ReadOnly, d.NewProt)
	}

	// Every resident page starts referenced=1, modified=0.
	for i := uint32(0); i < uint32(capacity); i++ {
		p := table.Find(i)
		require.True(t, p.Referenced)
		require.False(t, p.Modified)
	}

	time.Sleep(10 * time.Millisecond)
	// Run the lazy sweep directly: the cache is full, so going through
	// Admit would also evict a page.
	n.maybeSweep(table)
	for i := uint32(0); i < uint32(capacity); i++ {
		p := table.Find(i)
		require.False(t, p.Referenced, "sweep must clear every resident referenced bit")
	}

	// A read to page 0 sets referenced=1.
	n.OnAccess(table, 0, false)
	p0 := table.Find(0)
	require.True(t, p0.Referenced)
	require.False(t, p0.Modified)

	// A write sets modified=1.
	n.OnAccess(table, 0, true)
	p0 = table.Find(0)
	require.True(t, p0.Modified)
}

func TestNRUEvictsFromLowestNonemptyClass(t *testing.T) {
	capacity := 3
	table := pagetable.New(capacity)
	n := NewNRU(capacity, 0, false) // interval 0 disables auto-sweep

	n.Admit(table, 0)
	n.Admit(table, 1)
	n.Admit(table, 2)

	// Clear referenced on page 1 only, so class (0,0) contains {1}.
	table.Find(1).Referenced = false

	victim := n.pickVictim(table)
	require.Equal(t, uint32(1), victim, "must evict from class (0,0) when nonempty")
}

func TestNRUClassOf(t *testing.T) {
	require.Equal(t, classClean, classOf(false, false))
	require.Equal(t, classDirty, classOf(false, true))
	require.Equal(t, classRefOnly, classOf(true, false))
	require.Equal(t, classRefDirty, classOf(true, true))
}
