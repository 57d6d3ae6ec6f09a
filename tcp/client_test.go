package tcp

import (
	"context"
	"net"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func TestClient_dialIsSource(t *testing.T) {
	t.Parallel()

	ts := startServer(t)
	cli := NewClient(
		WithConnectAddress(ts.addr),
		WithClientLogger(slogt.New(t)),
	)
	t.Cleanup(func() { cli.Close() })

	c, err := cli.Dial(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cli.numConns())

	srvConn := receiveSoon(t, ts.conns)
	srvCh := watch(srvConn)
	cliCh := watch(c)

	_, err = c.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, chunkOrEnd{data: "ping"}, receiveSoon(t, srvCh))

	_, err = srvConn.Write([]byte("pong"))
	require.NoError(t, err)
	require.Equal(t, chunkOrEnd{data: "pong"}, receiveSoon(t, cliCh))

	require.NoError(t, c.CloseWrite())
	require.True(t, receiveSoon(t, srvCh).end)

	require.NoError(t, cli.Close())
	require.True(t, receiveSoon(t, cliCh).end)

	_, err = cli.Dial(context.Background())
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_refused(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cli := NewClient(WithConnectAddress(addr), WithClientLogger(slogt.New(t)))
	_, err = cli.Dial(context.Background())
	require.ErrorIs(t, err, ErrConnectionRefused)
}
