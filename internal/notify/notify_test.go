package notify

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(Notification{Level: LevelError, Op: "update", ID: "a", Message: "Failed to update. Please try again."})
	r.Notify(Notification{Level: LevelInfo, Op: "create", ID: "b", Message: "Created."})

	assert.Len(t, r.All(), 2)
	assert.Equal(t, []string{"Failed to update. Please try again.", "Created."}, r.Messages())

	r.Reset()
	assert.Empty(t, r.All())
}

func TestRecorder_Concurrent(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Notify(Notification{Message: "x"})
		}()
	}
	wg.Wait()
	assert.Len(t, r.All(), 50)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogNotifier{Logger: logger}.Notify(Notification{
		Level:   LevelError,
		Op:      "delete",
		ID:      "sup-1",
		Message: "Failed to delete. Please try again.",
	})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "op=delete")
	assert.Contains(t, out, "id=sup-1")
	assert.Contains(t, out, "Failed to delete")
}
