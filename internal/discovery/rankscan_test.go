package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRankScanServerRespondsWithEnviron(t *testing.T) {
	srv, err := NewRankScanServer("127.0.0.1:0", 3)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go srv.Serve(ctx)

	roster := Roster{Peers: []Peer{{Rank: 3, Address: srv.Addr()}}}
	reports, err := CollectEnvReports(ctx, roster, map[string]string{"JUMBOMEM_RANK": "0"})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, 0, reports[0].Rank)
	require.Equal(t, 3, reports[1].Rank)
	require.NotNil(t, reports[1].Env)
}

func TestRosterSaveAndLoadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/roster.json"

	r := Roster{Peers: []Peer{
		{Rank: 1, Address: "127.0.0.1:9001", BufferBytes: 4096 * 100, LockedInRAM: true},
		{Rank: 2, Address: "127.0.0.1:9002", BufferBytes: 4096 * 50},
	}}
	require.NoError(t, r.SaveFile(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, r, got)

	p, ok := got.Find(2)
	require.True(t, ok)
	require.Equal(t, int64(4096*50), p.BufferBytes)

	_, ok = got.Find(9)
	require.False(t, ok)
}
