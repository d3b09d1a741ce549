// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

package util

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// Printer writes user-facing lines, colorized only when the sink is a
// terminal.
type Printer struct {
	Out   io.Writer
	Color bool
}

// NewPrinter wraps a file, enabling color for real terminals.
func NewPrinter(f *os.File) *Printer {
	return &Printer{
		Out:   f,
		Color: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()),
	}
}

func (p *Printer) colored(color, format string, args ...any) {
	if p.Color {
		fmt.Fprintf(p.Out, color+format+ansiReset+"\n", args...)
		return
	}
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Printf writes one plain line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Successf(format string, args ...any) {
	p.colored(ansiGreen, format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.colored(ansiYellow, format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.colored(ansiRed, format, args...)
}
