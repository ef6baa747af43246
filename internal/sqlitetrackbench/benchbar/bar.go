// Package benchbar provides a really simple progress bar for the benchmarking
// process.
package benchbar

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar counts finished items. It is safe for concurrent use.
type Bar struct {
	pb       *progressbar.ProgressBar
	maxItems int
}

// NewBar creates a bar of maxItems items written to out.
func NewBar(out io.Writer, description string, maxItems int) *Bar {
	pb := progressbar.NewOptions(
		maxItems,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(out, "\n") }),
	)
	_ = pb.Set(0)

	return &Bar{pb: pb, maxItems: maxItems}
}

func (b *Bar) Inc() {
	_ = b.pb.Add(1)
}

// Done returns how many items were counted.
func (b *Bar) Done() int {
	return int(b.pb.State().CurrentNum)
}

func (b *Bar) Finish() {
	_ = b.pb.Finish()
	_ = b.pb.Close()
}
