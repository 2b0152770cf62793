package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pipeDialer struct {
	conn net.Conn
	err  error
}

func (d *pipeDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return d.conn, d.err
}

// brokenConn отдаёт ошибку на каждую запись после первых okWrites.
type brokenConn struct {
	net.Conn
	okWrites int32
	writes   atomic.Int32
	err      error
}

func (c *brokenConn) Write(p []byte) (int, error) {
	if c.writes.Add(1) > c.okWrites {
		return 0, c.err
	}
	return c.Conn.Write(p)
}

type testServer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (s *testServer) readLine(t *testing.T) string {
	t.Helper()
	require.NoError(t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := s.reader.ReadString('\n')
	require.NoError(t, err)
	return line
}

func (s *testServer) writeLine(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, s.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := s.conn.Write([]byte(line))
	require.NoError(t, err)
}

func startRelay(t *testing.T, ctx context.Context) (*Relay, *testServer, <-chan error) {
	t.Helper()
	client, server := net.Pipe()
	dialer := &pipeDialer{conn: client}

	relay := NewRelay(Config{
		Addr:    "irc.chat.twitch.tv:6697",
		Nick:    "bot",
		Token:   "oauth:secret",
		Channel: "chan",
	}, dialer, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	return relay, &testServer{conn: server, reader: bufio.NewReader(server)}, done
}

func popLine(t *testing.T, q *Queue[string]) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	return line
}

func TestRelaySendsHandshake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, srv, _ := startRelay(t, ctx)

	assert.Equal(t, "PASS oauth:secret\r\n", srv.readLine(t))
	assert.Equal(t, "NICK bot\r\n", srv.readLine(t))
	assert.Equal(t, "JOIN #chan\r\n", srv.readLine(t))
	assert.Equal(t, "CAP REQ :twitch.tv/tags\r\n", srv.readLine(t))
}

func TestRelayPumpsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay, srv, _ := startRelay(t, ctx)
	for i := 0; i < 4; i++ {
		srv.readLine(t)
	}

	srv.writeLine(t, "PING :tmi.twitch.tv\r\n\r\n:a!a@a PRIVMSG #chan :one\n:a!a@a PRIVMSG #chan :two  \r\n")
	assert.Equal(t, "PING :tmi.twitch.tv", popLine(t, relay.Lines()))
	assert.Equal(t, ":a!a@a PRIVMSG #chan :one", popLine(t, relay.Lines()))
	assert.Equal(t, ":a!a@a PRIVMSG #chan :two", popLine(t, relay.Lines()))

	require.True(t, relay.Send("PONG tmi.twitch.tv"))
	require.True(t, relay.Send("PRIVMSG #chan :hi"))
	assert.Equal(t, "PONG tmi.twitch.tv\r\n", srv.readLine(t))
	assert.Equal(t, "PRIVMSG #chan :hi\r\n", srv.readLine(t))
}

func TestRelayEndsWhenServerCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay, srv, done := startRelay(t, ctx)
	for i := 0; i < 4; i++ {
		srv.readLine(t)
	}
	srv.writeLine(t, "PING :x\r\n")
	require.NoError(t, srv.conn.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after server closed the connection")
	}

	assert.Equal(t, "PING :x", popLine(t, relay.Lines()))
	_, ok, err := relay.Lines().Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "inbound queue is closed after the session ends")
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	_, srv, done := startRelay(t, ctx)
	for i := 0; i < 4; i++ {
		srv.readLine(t)
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestRelayDialFailure(t *testing.T) {
	dialErr := errors.New("refused")
	relay := NewRelay(Config{Addr: "127.0.0.1:1"}, &pipeDialer{err: dialErr}, zap.NewNop())

	err := relay.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dialErr)

	_, ok, _ := relay.Lines().Pop(context.Background())
	assert.False(t, ok)
}

func TestRelayEndsOnWriteFailure(t *testing.T) {
	writeErr := errors.New("broken pipe")
	client, server := net.Pipe()
	relay := NewRelay(Config{
		Addr:    "irc.chat.twitch.tv:6697",
		Nick:    "bot",
		Token:   "oauth:secret",
		Channel: "chan",
	}, &pipeDialer{conn: &brokenConn{Conn: client, okWrites: 4, err: writeErr}}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- relay.Run(context.Background()) }()

	srv := &testServer{conn: server, reader: bufio.NewReader(server)}
	for i := 0; i < 4; i++ {
		srv.readLine(t)
	}
	require.True(t, relay.Send("PRIVMSG #chan :hi"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, writeErr)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after a failed write")
	}

	_, ok, err := relay.Lines().Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "inbound queue is closed after the session ends")
}
