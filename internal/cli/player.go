package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// terminalPlayer stands in for a video element. It remembers the seek position
// and on Play prints a media fragment URL that starts the video there.
type terminalPlayer struct {
	out      io.Writer
	videoURL string
	position float64
}

func (p *terminalPlayer) Seek(seconds float64) error {
	p.position = seconds
	return nil
}

func (p *terminalPlayer) Play() error {
	if p.videoURL == "" {
		_, err := fmt.Fprintf(p.out, "Playing from %s\n", FormatTimestamp(p.position))
		return err
	}
	link := p.videoURL + "#t=" + strconv.FormatFloat(p.position, 'f', -1, 64)
	_, err := fmt.Fprintf(p.out, "Playing from %s  %s\n", FormatTimestamp(p.position), color.CyanString(link))
	return err
}
