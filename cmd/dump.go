package cmd

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tutils/rxnet"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/rxserver"
)

var dumpColors = []color.Attribute{
	color.FgCyan, color.FgGreen, color.FgYellow, color.FgMagenta, color.FgBlue, color.FgRed,
}

// dumper prints connection records, one line each, colored per
// connection when writing to a terminal.
type dumper struct {
	w     io.Writer
	color bool
	n     atomic.Uint64
}

func newDumper(w io.Writer) *dumper {
	d := &dumper{w: rxnet.NewSyncWriter(w)}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		d.color = true
	}
	return d
}

// observer returns an observer printing the records of one connection.
func (d *dumper) observer() rx.Observer[rxserver.Connection] {
	c := color.New(dumpColors[(d.n.Add(1)-1)%uint64(len(dumpColors))])
	if d.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	var id string
	// Each line goes out in a single Write.
	printf := func(format string, a ...any) {
		io.WriteString(d.w, c.Sprintf(format, a...)+"\n")
	}
	return rx.ObserverFuncs[rxserver.Connection]{
		Next: func(r rxserver.Connection) {
			id = r.ID.String()[:8]
			if r.IsNew() {
				printf("%s + %s", id, r.Conn.RemoteAddr())
				return
			}
			printf("%s > %q", id, r.Data)
		},
		Error: func(err error) {
			printf("%s ! %v", id, err)
		},
		Complete: func() {
			printf("%s -", id)
		},
	}
}
