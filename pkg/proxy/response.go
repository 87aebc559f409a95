package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"corvus-hq/rookery/pkg/proxy/types"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response at the status its type maps to.
func WriteError(w http.ResponseWriter, resp *types.ErrorResponse) error {
	return WriteJSON(w, resp.Error.HTTPStatusCode(), resp)
}

// SetSSEHeaders prepares the response for server-sent events.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEChunk writes one chunk as an SSE data frame and flushes it.
func WriteSSEChunk(w http.ResponseWriter, chunk *types.ChatCompletionStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSEDone terminates the SSE stream.
func WriteSSEDone(w http.ResponseWriter) error {
	_, err := fmt.Fprint(w, "data: [DONE]\n\n")
	flush(w)
	return err
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
