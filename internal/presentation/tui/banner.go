package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ticketflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _   _      _        _    __ _               ", "#818cf8"},
		{"| |_(_) ___| | _____| |_ / _| | _____      __", "#a78bfa"},
		{"| __| |/ __| |/ / _ \\ __| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"| |_| | (__|   <  __/ |_|  _| | (_) \\ V  V / ", "#e879f9"},
		{" \\__|_|\\___|_|\\_\\___|\\__|_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
