// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	applog "spectrometer/internal/log"
	"spectrometer/internal/transport"
	"sync"
	"time"
)

// HeaderSize is the fixed packet prefix: sequence, timestamp and count.
const HeaderSize = 4 + 8 + 2

// UDPPublisher periodically reads the latest level array from its source,
// packs it into a defined binary format, and sends it over UDP using a
// UDPSender. Ticks with nothing new published send nothing.
// It runs in a separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   *UDPSender            // The underlying UDP sender instance.
	source   transport.LevelSource // Tap the levels are read from.
	interval time.Duration         // The interval at which the source is polled.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum   uint32 // Monotonically increasing sequence number for packets.
	lastPublished uint64 // Publish number of the last array sent.

	// Pre-allocated buffers reused for every packet.
	levelBuffer  []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source transport.LevelSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: level source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	levels := source.Len()
	if levels > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: %d levels do not fit the uint16 count field", levels)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Levels: %d)", interval, levels)

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		levelBuffer:  make([]float32, levels),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+4*levels)),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Locals for the goroutine, so it never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publishIfNew()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Level Count       | uint16         | 2            | Number of floats (N)    |
| Levels            | []float32      | N * 4        | Display levels in [0,1] |
+-----------------------------------------------------------------------------+
*/

// publishIfNew sends the latest array when the source has published since
// the previous send.
func (p *UDPPublisher) publishIfNew() {
	if p.source.Published() == p.lastPublished {
		return
	}
	levels, published := p.source.LatestSeq()
	if published == p.lastPublished {
		return
	}
	p.lastPublished = published

	for i, v := range levels {
		if i == len(p.levelBuffer) {
			break
		}
		p.levelBuffer[i] = float32(v)
	}

	p.sequenceNum++
	packet, err := p.buildPacket(p.sequenceNum, time.Now().UnixNano())
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	if err := p.sender.Send(packet); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	}
}

// buildPacket encodes levelBuffer into packetBuffer and returns its bytes.
func (p *UDPPublisher) buildPacket(seq uint32, timestamp int64) ([]byte, error) {
	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.levelBuffer)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.levelBuffer)
	}
	if err != nil {
		return nil, err
	}
	return p.packetBuffer.Bytes(), nil
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)

// Packet is a decoded level packet.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Levels    []float32
}

// DecodePacket parses one datagram produced by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet of %d bytes is shorter than the %d byte header", len(b), HeaderSize)
	}
	seq := binary.BigEndian.Uint32(b[0:4])
	ts := int64(binary.BigEndian.Uint64(b[4:12]))
	count := int(binary.BigEndian.Uint16(b[12:14]))

	payload := b[HeaderSize:]
	if len(payload) != 4*count {
		return Packet{}, fmt.Errorf("packet declares %d levels but carries %d bytes", count, len(payload))
	}
	levels := make([]float32, count)
	for i := range levels {
		levels[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return Packet{Seq: seq, Timestamp: time.Unix(0, ts), Levels: levels}, nil
}
