package server

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultStreamInterval is how often the stream looks for a new frame (~15 FPS).
const DefaultStreamInterval = 66 * time.Millisecond

// FrameFeed supplies the newest encoded JPEG frame and its sequence number.
type FrameFeed interface {
	Latest() (jpeg []byte, seq uint64)
}

// StreamHandler serves the annotated workout frames as MJPEG.
type StreamHandler struct {
	feed     FrameFeed
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from feed.
func NewStreamHandler(feed FrameFeed) *StreamHandler {
	return &StreamHandler{feed: feed, interval: DefaultStreamInterval}
}

// ServeHTTP streams MJPEG frames until the client goes away. Each frame is
// sent once.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		if jpeg, seq := h.feed.Latest(); seq != last && len(jpeg) > 0 {
			last = seq
			if err := writePart(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
