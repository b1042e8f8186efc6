package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// chunkAssembler accumulates muxed output from the appsink into
// interval-sized chunks. A chunk boundary is crossed roughly once per
// ChunkInterval; the boundary hook drives per-segment feedback while a
// take is being recorded.
type chunkAssembler struct {
	mu        sync.Mutex
	chunks    [][]byte
	buf       []byte
	lastFlush time.Time
	interval  time.Duration
	onSegment func(seq int, size int)

	// Atomic counters shared with Camera stats
	bytesCaptured *uint64
	chunkCount    *uint64
}

func newChunkAssembler(interval time.Duration, bytesCaptured, chunkCount *uint64, onSegment func(seq, size int)) *chunkAssembler {
	return &chunkAssembler{
		interval:      interval,
		onSegment:     onSegment,
		bytesCaptured: bytesCaptured,
		chunkCount:    chunkCount,
	}
}

// append adds muxed bytes and flushes a chunk when the interval elapses.
func (a *chunkAssembler) append(data []byte, now time.Time) {
	a.mu.Lock()

	if a.lastFlush.IsZero() {
		a.lastFlush = now
	}

	a.buf = append(a.buf, data...)
	atomic.AddUint64(a.bytesCaptured, uint64(len(data)))

	var flushed int
	var seq int
	if now.Sub(a.lastFlush) >= a.interval && len(a.buf) > 0 {
		a.chunks = append(a.chunks, a.buf)
		flushed = len(a.buf)
		seq = len(a.chunks)
		a.buf = nil
		a.lastFlush = now
		atomic.AddUint64(a.chunkCount, 1)
	}
	a.mu.Unlock()

	if flushed > 0 && a.onSegment != nil {
		a.onSegment(seq, flushed)
	}
}

// drain flushes any partial chunk and returns the concatenated take bytes.
// The assembler is reset so a restarted pipeline starts clean.
func (a *chunkAssembler) drain() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) > 0 {
		a.chunks = append(a.chunks, a.buf)
		a.buf = nil
		atomic.AddUint64(a.chunkCount, 1)
	}

	total := 0
	for _, c := range a.chunks {
		total += len(c)
	}

	out := make([]byte, 0, total)
	for _, c := range a.chunks {
		out = append(out, c...)
	}

	a.chunks = nil
	a.lastFlush = time.Time{}
	return out
}

// onNewSample is called by GStreamer when muxed output is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer to read the muxed bytes
//  3. Copies data (GStreamer will reuse the buffer)
//  4. Hands the bytes to the chunk assembler
//
// A single failed pull must not terminate the take, so pull failures are
// logged and skipped rather than returned as flow errors.
func onNewSample(sink *app.Sink, assembler *chunkAssembler) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("capture: failed to pull sample from appsink, skipping")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("capture: failed to get buffer from sample, skipping")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	// Copy before unmap (GStreamer will reuse the buffer)
	chunk := make([]byte, len(data))
	copy(chunk, data)
	buffer.Unmap()

	assembler.append(chunk, time.Now())
	return gst.FlowOK
}
