package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/sandrolain/jitq/pkg/document"
)

// InvalidDocument is written in place of a result for lines that are not
// valid JSON.
const InvalidDocument = "Error: invalid document"

// maxLineSize bounds a single input document.
const maxLineSize = 64 * 1024 * 1024

// Stats summarizes a stream run.
type Stats struct {
	// Records is the number of input lines read.
	Records int
	// Matched is the number of records navigated successfully.
	Matched int
	// Failed is the number of records with a nonzero error code.
	Failed int
	// Invalid is the number of lines that were not valid JSON.
	Invalid int
}

// RunStream applies a path program to every line of r and writes one line
// per input line to w, in input order. Navigation errors and undecodable
// lines produce an "Error: ..." line and the stream continues; call faults
// and I/O errors stop it.
func (d *Driver) RunStream(ctx context.Context, p *Program, r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats
	out := bufio.NewWriter(w)
	defer out.Flush()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		stats.Records++
		line := sc.Bytes()

		doc, err := document.Decode(line)
		if err != nil {
			stats.Invalid++
			d.logger.Warn("invalid document", "line", stats.Records, "error", err)
			if _, err := fmt.Fprintln(out, InvalidDocument); err != nil {
				return stats, err
			}
			continue
		}

		res, err := p.Apply(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.Records, err)
		}
		if res.OK() {
			stats.Matched++
		} else {
			stats.Failed++
			d.logger.Debug("navigation failed", "line", stats.Records, "code", res.Code, "reason", res.Code.String())
		}

		text, err := res.Render()
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.Records, err)
		}
		if _, err := fmt.Fprintln(out, text); err != nil {
			return stats, err
		}
	}
	if err := sc.Err(); err != nil {
		return stats, err
	}

	d.logger.Debug("stream done",
		"records", stats.Records,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"invalid", stats.Invalid)
	return stats, out.Flush()
}
