// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"net/http/httptest"
	"spectrometer/internal/analysis"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recordingTransport) Send(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Seq: frame.Seq, Levels: append([]float64(nil), frame.Levels...)})
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) snapshot() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

func TestPump_SendsOnlyNewFrames(t *testing.T) {
	src := analysis.NewHandoff(3)
	rec := &recordingTransport{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Pump(ctx, src, rec, time.Millisecond) }()

	// Nothing is sent before the first publish.
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	src.Publish([]float64{0.1, 0.2, 0.3})
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)

	// Further ticks without a publish add nothing.
	time.Sleep(10 * time.Millisecond)
	frames := rec.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, Frame{Seq: 1, Levels: []float64{0.1, 0.2, 0.3}}, frames[0])

	src.Publish([]float64{1, 1, 1})
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(2), rec.snapshot()[1].Seq)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// laggingSource reports one more publish than the array it returns, as when
// the producer publishes between the two reads.
type laggingSource struct {
	levels []float64
	seq    uint64
}

func (s *laggingSource) LatestSeq() ([]float64, uint64) { return s.levels, s.seq }
func (s *laggingSource) Published() uint64              { return s.seq + 1 }
func (s *laggingSource) Len() int                       { return len(s.levels) }

func TestPump_LabelsFramesWithTheirOwnSeq(t *testing.T) {
	src := &laggingSource{levels: []float64{0.4, 0.6}, seq: 5}
	rec := &recordingTransport{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Pump(ctx, src, rec, time.Millisecond) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	frames := rec.snapshot()
	require.Len(t, frames, 1, "the same array must not be sent twice")
	assert.Equal(t, Frame{Seq: 5, Levels: []float64{0.4, 0.6}}, frames[0])
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	require.NoError(t, lt.Send(Frame{Seq: 1, Levels: []float64{0, 0.9, 0.1}}))
	require.NoError(t, lt.Send(Frame{Seq: 2}))
	assert.Equal(t, uint64(2), lt.Frames())
	assert.NoError(t, lt.Close())
}

func dialLevels(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + LevelsPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketTransport_Broadcast(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	defer wst.Close()

	server := httptest.NewServer(wst.Handler())
	defer server.Close()

	a := dialLevels(t, server)
	b := dialLevels(t, server)
	require.Eventually(t, func() bool { return wst.Clients() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, wst.Send(Frame{Seq: 7, Levels: []float64{0, 0.5, 1}}))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got Frame
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, Frame{Seq: 7, Levels: []float64{0, 0.5, 1}}, got)
	}

	// A disconnecting client is removed from the broadcast set.
	a.Close()
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, time.Second, time.Millisecond)
}

// A client that never reads must not hold up other clients or Close.
func TestWebSocketTransport_StalledClient(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	wst.writeTimeout = 50 * time.Millisecond

	server := httptest.NewServer(wst.Handler())
	defer server.Close()

	_ = dialLevels(t, server) // never read
	live := dialLevels(t, server)
	require.Eventually(t, func() bool { return wst.Clients() == 2 }, time.Second, time.Millisecond)

	const final = 1000
	received := make(chan struct{})
	go func() {
		defer close(received)
		_ = live.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var got Frame
			if err := live.ReadJSON(&got); err != nil || got.Seq == final {
				return
			}
		}
	}()

	levels := make([]float64, 4096)
	for i := range levels {
		levels[i] = 0.123456789
	}
	for seq := uint64(1); seq <= 400; seq++ {
		require.NoError(t, wst.Send(Frame{Seq: seq, Levels: levels}))
	}

	// The stalled client misses its write deadline and is dropped.
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, 3*time.Second, 5*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, wst.Send(Frame{Seq: final, Levels: []float64{1}}))
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("live client never received the final frame")
	}

	closed := make(chan error, 1)
	go func() { closed <- wst.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

// Close must not wait for a write that is stuck on a full socket.
func TestWebSocketTransport_CloseWithStuckWrite(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	wst.writeTimeout = time.Minute

	server := httptest.NewServer(wst.Handler())
	defer server.Close()

	_ = dialLevels(t, server) // never read
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, time.Second, time.Millisecond)

	levels := make([]float64, 4096)
	for i := range levels {
		levels[i] = 0.123456789
	}
	for seq := uint64(1); seq <= 400; seq++ {
		require.NoError(t, wst.Send(Frame{Seq: seq, Levels: levels}))
	}
	time.Sleep(100 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- wst.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a stalled write")
	}
	assert.Zero(t, wst.Clients())
}

func TestWebSocketTransport_StartAndClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, wst.Start())
	require.NoError(t, wst.Close())
	require.NoError(t, wst.Close())

	assert.Error(t, wst.Send(Frame{Seq: 1}))

	bad := NewWebSocketTransport("256.0.0.1:bad")
	defer bad.Close()
	assert.Error(t, bad.Start())
}
