package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typedcode/internal/proof"
	"typedcode/internal/replay"
)

func intp(v int) *int { return &v }

func typingLog(word string) proof.EventLog {
	log := make(proof.EventLog, 0, len(word))
	for i, r := range word {
		log = append(log, proof.Event{
			Type:        proof.EventChange,
			Timestamp:   int64(i * 10),
			Data:        proof.EventData{Text: string(r)},
			RangeOffset: intp(i),
			RangeLength: intp(0),
		})
	}
	return log
}

// tickRecorder captures every emitted (index, content) pair.
type tickRecorder struct {
	mu    sync.Mutex
	ticks []int
	last  string
	done  chan struct{} // closed once the final index is seen
	final int
}

func newTickRecorder(final int) *tickRecorder {
	return &tickRecorder{done: make(chan struct{}), final: final}
}

func (r *tickRecorder) tick(index int, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, index)
	r.last = content
	if index == r.final {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
}

func (r *tickRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("playback never reached the end of the log")
	}
}

func TestPlay_RunsToEnd(t *testing.T) {
	r := replay.New(typingLog("hello"))
	rec := newTickRecorder(5)
	c := New(r, time.Millisecond, rec.tick)

	c.Play(context.Background())
	rec.wait(t)
	c.Pause()

	assert.False(t, c.Playing())
	assert.Equal(t, 5, c.Index())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.ticks)
	assert.Equal(t, "hello", rec.last)
}

func TestPlay_WhilePlayingIsNoOp(t *testing.T) {
	r := replay.New(typingLog("abcdefghij"))
	rec := newTickRecorder(10)
	c := New(r, time.Millisecond, rec.tick)

	ctx := context.Background()
	c.Play(ctx)
	c.Play(ctx)
	c.Play(ctx)
	rec.wait(t)
	c.Pause()

	// A doubled goroutine would emit duplicate indices.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	seen := make(map[int]int)
	for _, idx := range rec.ticks {
		seen[idx]++
	}
	for idx, n := range seen {
		assert.Equal(t, 1, n, "index %d emitted %d times", idx, n)
	}
}

func TestPause_RetainsIndex(t *testing.T) {
	r := replay.New(typingLog("abcdefghijklmnopqrst"))
	firstTick := make(chan struct{})
	var once sync.Once
	c := New(r, time.Millisecond, func(index int, content string) {
		once.Do(func() { close(firstTick) })
	})

	c.Play(context.Background())
	<-firstTick
	c.Pause()

	idx := c.Index()
	assert.Greater(t, idx, 0)
	assert.False(t, c.Playing())

	// No further advance after Pause returns.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, idx, c.Index())
}

func TestPause_WhenNotPlayingIsNoOp(t *testing.T) {
	c := New(replay.New(typingLog("ab")), time.Millisecond, nil)
	c.Pause()
	assert.Equal(t, 0, c.Index())
}

func TestSeek_Clamps(t *testing.T) {
	r := replay.New(typingLog("hello"))
	var mu sync.Mutex
	var lastIndex int
	var lastContent string
	c := New(r, time.Millisecond, func(index int, content string) {
		mu.Lock()
		lastIndex, lastContent = index, content
		mu.Unlock()
	})

	c.Seek(3)
	mu.Lock()
	assert.Equal(t, 3, lastIndex)
	assert.Equal(t, "hel", lastContent)
	mu.Unlock()

	c.Seek(99)
	assert.Equal(t, 5, c.Index())
	c.Seek(-7)
	assert.Equal(t, 0, c.Index())

	mu.Lock()
	assert.Equal(t, "", lastContent)
	mu.Unlock()
}

func TestSeek_BackwardThenForward(t *testing.T) {
	r := replay.New(typingLog("hello"))
	c := New(r, time.Millisecond, nil)

	c.Seek(5)
	c.Seek(2)
	assert.Equal(t, 2, c.Index())
	c.Seek(4)
	assert.Equal(t, 4, c.Index())
}

func TestSeek_DuringPlaybackDoesNotStopIt(t *testing.T) {
	r := replay.New(typingLog("abcdefghijklmnopqrstuvwxyz"))
	rec := newTickRecorder(26)
	c := New(r, time.Millisecond, rec.tick)

	c.Play(context.Background())
	c.Seek(20)
	assert.True(t, c.Playing())

	rec.wait(t)
	c.Pause()
	assert.Equal(t, 26, c.Index())
}

func TestPlay_ContextCancellationStops(t *testing.T) {
	r := replay.New(typingLog("abcdefghijklmnopqrst"))
	ctx, cancel := context.WithCancel(context.Background())
	c := New(r, time.Millisecond, nil)

	c.Play(ctx)
	cancel()

	require.Eventually(t, func() bool { return !c.Playing() }, 5*time.Second, time.Millisecond)
}

func TestNew_DefaultInterval(t *testing.T) {
	c := New(replay.New(nil), 0, nil)
	assert.Equal(t, DefaultTickInterval, c.interval)
}
