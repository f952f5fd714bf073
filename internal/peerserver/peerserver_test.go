package peerserver

import (
	"context"
	"testing"
	"time"

	"github.com/dsmmcken/jumbomem/internal/intercept"
	"github.com/dsmmcken/jumbomem/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestBufferStoreReadWriteRoundTrip(t *testing.T) {
	store, err := NewBufferStore(4096*4, 4096, intercept.NewFake(0), false)
	require.NoError(t, err)
	defer store.Close()

	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, store.WritePage(4096, src))

	dst := make([]byte, 4096)
	require.NoError(t, store.ReadPage(4096, dst))
	require.Equal(t, src, dst)
}

func TestBufferStoreRejectsOutOfRangeOffsets(t *testing.T) {
	store, err := NewBufferStore(4096, 4096, intercept.NewFake(0), false)
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.ReadPage(8192, make([]byte, 4096)))
	require.Error(t, store.WritePage(8192, make([]byte, 4096)))
}

func TestServerFetchAndEvictOverRealListener(t *testing.T) {
	srv, err := New(testLog(), "127.0.0.1:0", 4096*4, 4096, false, false, intercept.NewFake(0))
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	m := transport.NewMasterConn(testLog(), false)
	require.NoError(t, m.Dial(ctx, 1, srv.Addr()))
	defer m.Close()

	page := make([]byte, 4096)
	for i := range page {
		page[i] = 0x5A
	}
	evH, err := m.EvictBegin(ctx, 1, 0, page, true)
	require.NoError(t, err)
	done, err := m.EvictPoll(evH)
	require.NoError(t, err)
	require.True(t, done)

	time.Sleep(20 * time.Millisecond)

	fetchH, err := m.FetchBegin(ctx, 1, 0)
	require.NoError(t, err)
	dst := make([]byte, 4096)
	done, err = m.FetchPoll(fetchH, dst)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, page, dst)

	require.NoError(t, m.Finalize(ctx))
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after TERMINATE")
	}
}

func TestServerAddrReportsResolvedListenAddress(t *testing.T) {
	srv, err := New(testLog(), "127.0.0.1:0", 4096, 4096, false, false, intercept.NewFake(0))
	require.NoError(t, err)
	defer srv.Close()
	require.NotEmpty(t, srv.Addr())
	require.NotContains(t, srv.Addr(), ":0")
}
