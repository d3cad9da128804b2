package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/conductor-oss/conductor/internal/eventbus"
)

// streamEvents is the SSE endpoint: on connect it flushes an initial
// comment frame, subscribes to the bus, and writes a framed record per
// event until the client disconnects. Grounded on the teacher's SSE
// handler: per-client buffered channel fed synchronously by the bus,
// read and flushed from the request goroutine.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	events := make(chan eventbus.Event, 256)
	handle := s.Bus.Subscribe(func(e eventbus.Event) {
		select {
		case events <- e:
		default:
			// Slow client: drop rather than block the publisher.
		}
	})
	defer s.Bus.Unsubscribe(handle)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}
