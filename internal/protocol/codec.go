package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeEnvelope serializes an Envelope to JSON and writes it to w.
func EncodeEnvelope(w io.Writer, env *Envelope) error {
	if env.Protocol != Version {
		return fmt.Errorf("unsupported protocol version: %d", env.Protocol)
	}
	if env.CompilerClass == "" {
		return fmt.Errorf("envelope missing compiler class")
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(env); err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	return nil
}

// DecodeEnvelope reads and validates an Envelope from r. Used by worker-side
// shims and tests.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	var env Envelope

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	if env.Protocol != Version {
		return nil, fmt.Errorf("unsupported protocol version: %d", env.Protocol)
	}
	if env.CompilerClass == "" {
		return nil, fmt.Errorf("envelope missing compiler class")
	}

	return &env, nil
}

// DecodeResponseLenient decodes a single response with strict field checking
// but returns whatever raw bytes the worker wrote even when decoding fails,
// so protocol faults can carry the offending output.
func DecodeResponseLenient(r io.Reader) (*Response, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if len(data) == 0 {
		return nil, data, fmt.Errorf("worker produced no output on stdout")
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, data, fmt.Errorf("worker output is not valid JSON: %w", err)
	}

	if err := validateResponse(&resp); err != nil {
		return nil, data, err
	}

	return &resp, data, nil
}

// ResponseReader decodes a stream of newline-delimited responses from a
// persistent worker's stdout. A reused daemon worker answers many envelopes
// over one pipe, so the reader state must live across calls.
type ResponseReader struct {
	r *bufio.Reader
}

// NewResponseReader wraps a worker stdout stream.
func NewResponseReader(r io.Reader) *ResponseReader {
	return &ResponseReader{r: bufio.NewReader(r)}
}

// Next reads and validates the next response line, skipping blank lines. On a
// malformed line the error includes the captured stdout bytes. Returns a
// wrapped io.EOF once the worker closes its stdout.
func (rr *ResponseReader) Next() (*Response, error) {
	for {
		line, err := rr.r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}
			continue
		}

		resp, raw, derr := DecodeResponseLenient(bytes.NewReader(trimmed))
		if derr != nil {
			return nil, fmt.Errorf("%w (stdout: %q)", derr, clipOutput(raw))
		}
		return resp, nil
	}
}

// clipOutput bounds how much worker stdout travels inside fault messages.
func clipOutput(b []byte) []byte {
	const max = 256
	if len(b) > max {
		return b[:max]
	}
	return b
}

func validateResponse(resp *Response) error {
	if resp.Status == "" {
		return fmt.Errorf("response missing required field: status")
	}
	if resp.Status != "ok" && resp.Status != "error" {
		return fmt.Errorf("invalid status value: %q (must be 'ok' or 'error')", resp.Status)
	}
	if resp.Status == "error" && resp.Error == "" {
		return fmt.Errorf("response has status=error but no error message")
	}
	if resp.Status == "ok" && resp.Result == nil {
		return fmt.Errorf("response has status=ok but no result")
	}
	return nil
}
