package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	progress "gopkg.in/cheggaaa/pb.v1"
)

const progressWidth = 80

// progressBar renders a commit loop's progress on a terminal line.
type progressBar struct {
	w   io.Writer
	bar *progress.ProgressBar
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

// Update matches the OnProgress callbacks of the batch loops.
func (pb *progressBar) Update(done, total int, label string) {
	if pb.bar == nil {
		pb.bar = progress.New(total)
		pb.bar.Callback = func(msg string) {
			fmt.Fprint(pb.w, "\033[2K\r"+msg)
		}
		pb.bar.NotPrint = true
		pb.bar.ShowPercent = false
		pb.bar.ShowSpeed = false
		pb.bar.SetMaxWidth(progressWidth).Start()
	}

	pb.bar.Set(done).Postfix(" [" + label + "] ")
}

// Finish closes the bar line.
func (pb *progressBar) Finish() {
	if pb.bar == nil {
		return
	}

	pb.bar.Finish()
	fmt.Fprint(pb.w, "\033[2K\r")
}

// progressCallback returns nil when progress output is disabled.
func progressCallback(w io.Writer, disabled bool) (func(done, total int, label string), func()) {
	if disabled {
		return nil, func() {}
	}

	pb := newProgressBar(w)

	return pb.Update, pb.Finish
}

func count(n int) string {
	return humanize.Comma(int64(n))
}
