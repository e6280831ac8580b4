// Package commander turns JSON commands into signer operations and
// collects their results as reports.
package commander

import (
	"encoding/json"

	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/wallet"
)

// Status is the outcome of a reported operation.
type Status int

// Report statuses.
const (
	StatusSuccess Status = iota
	StatusError
)

// String returns SUCCESS or ERROR.
func (s Status) String() string {
	if s == StatusSuccess {
		return "SUCCESS"
	}
	return "ERROR"
}

// Report is one (command, message, status) result.
type Report struct {
	Command string
	Message string
	Status  Status
}

// Reporter receives operation results.
type Reporter interface {
	Fill(cmd, msg string, status Status)
}

// DefaultBufferSize is the rendered size limit of a Buffer.
const DefaultBufferSize = 4096

const bufferTooSmallMessage = "Serialization buffer too small."

// Buffer is a Reporter that renders reports as a JSON object, bounded
// by a byte limit on the rendered output.
type Buffer struct {
	limit    int
	size     int
	reports  []Report
	overflow bool
	secret   bool
}

// NewBuffer creates a Buffer holding at most limit rendered bytes. A
// non-positive limit selects DefaultBufferSize.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultBufferSize
	}
	return &Buffer{limit: limit, size: 2}
}

// Fill appends a report. A report that would push the rendered output
// past the limit is dropped and the buffer is marked as overflowed.
func (b *Buffer) Fill(cmd, msg string, status Status) {
	r := Report{Command: cmd, Message: msg, Status: status}
	n := len(renderEntry(r))
	if len(b.reports) > 0 {
		n++ // comma
	}
	if b.size+n > b.limit {
		b.overflow = true
		log.Commander.Warn().Str("cmd", cmd).Int("limit", b.limit).Msg("Report dropped, buffer full")
		return
	}
	b.size += n
	b.reports = append(b.reports, r)

	ev := log.Commander.Debug().Str("cmd", cmd).Stringer("status", status)
	if !b.secret {
		ev = ev.Str("msg", msg)
	}
	ev.Msg("Report")
}

// Reports returns the collected reports.
func (b *Buffer) Reports() []Report {
	return b.reports
}

// Err returns wallet.ErrSerializationBufferTooSmall if a report was
// dropped.
func (b *Buffer) Err() error {
	if b.overflow {
		return wallet.ErrSerializationBufferTooSmall
	}
	return nil
}

// JSON renders the reports in order: successes as "cmd": "msg" and
// failures as "error": "msg". After an overflow only the overflow error
// is rendered.
func (b *Buffer) JSON() []byte {
	if b.overflow {
		return append(append([]byte("{"), renderEntry(Report{Message: bufferTooSmallMessage, Status: StatusError})...), '}')
	}
	out := make([]byte, 0, b.size)
	out = append(out, '{')
	for i, r := range b.reports {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, renderEntry(r)...)
	}
	return append(out, '}')
}

// Reset drops all reports.
func (b *Buffer) Reset() {
	b.reports = nil
	b.size = 2
	b.overflow = false
	b.secret = false
}

// markSecret suppresses message logging for the rest of the buffer's
// life, for commands whose output is key material.
func (b *Buffer) markSecret() {
	b.secret = true
}

func renderEntry(r Report) []byte {
	key := r.Command
	if r.Status == StatusError {
		key = "error"
	}
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(r.Message)
	out := make([]byte, 0, len(k)+1+len(v))
	out = append(out, k...)
	out = append(out, ':')
	return append(out, v...)
}
