package httpx

import (
	"bytes"
	"net/http"
)

// ResponseBuffer records a response so that middleware can inspect it
// before deciding whether to send it.
type ResponseBuffer interface {
	http.ResponseWriter
	Status() int
	Body() []byte
	Flush(w http.ResponseWriter) error
}

type responseBuffer struct {
	status  int
	header  http.Header
	body    bytes.Buffer
	written bool
}

func NewResponseBuffer() ResponseBuffer {
	return &responseBuffer{header: http.Header{}}
}

// Status is the recorded status code; a body written without one counts as 200.
func (resp *responseBuffer) Status() int {
	if resp.status == 0 && resp.written {
		return http.StatusOK
	}
	return resp.status
}

func (resp *responseBuffer) Header() http.Header {
	return resp.header
}

func (resp *responseBuffer) Body() []byte {
	if !resp.written {
		return nil
	}
	return resp.body.Bytes()
}

func (resp *responseBuffer) Write(body []byte) (int, error) {
	resp.written = true
	return resp.body.Write(body)
}

func (resp *responseBuffer) WriteHeader(statusCode int) {
	if resp.status == 0 {
		resp.status = statusCode
	}
}

// Flush replays the recorded response on w.
func (resp *responseBuffer) Flush(w http.ResponseWriter) error {
	header := w.Header()
	for key, values := range resp.header {
		header[key] = values
	}
	if status := resp.Status(); status != 0 {
		w.WriteHeader(status)
	}
	if !resp.written {
		return nil
	}
	_, err := w.Write(resp.body.Bytes())
	return err
}
