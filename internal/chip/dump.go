package chip

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/shiresim/internal/hart"
)

// HartStateDump renders every hart's pc/priv/pmu counters as a table,
// the same go-pretty table idiom zeonica/core/util.go's PrintState uses
// for its register and buffer dumps (spec §9 "Global mutable state" /
// debug dumps).
func (c *Chip) HartStateDump() string {
	t := table.NewWriter()
	t.SetTitle("Hart State")
	t.AppendHeader(table.Row{"ID", "State", "PC", "Priv", "Cycles", "InstRet"})

	for _, h := range c.Harts {
		t.AppendRow(table.Row{
			h.ID.String(),
			h.State.String(),
			fmt.Sprintf("%#016x", h.PC),
			h.Priv.String(),
			c.ReadPMUCycles(0, int(h.ID)),
			c.ReadPMUInstRet(0, int(h.ID)),
		})
	}

	return t.Render()
}

// RegisterFileDump renders hart h's 32 integer registers, grouped in
// four columns of 8, mirroring zeonica/core/util.go's PrintState
// register table.
func (c *Chip) RegisterFileDump(id hart.ID) string {
	h := c.hartByID(id)
	if h == nil {
		return ""
	}

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Registers: %s", id.String()))
	t.AppendHeader(table.Row{"x0-x7", "x8-x15", "x16-x23", "x24-x31"})

	group := func(base int) string {
		vals := ""
		for i := 0; i < 8; i++ {
			if i > 0 {
				vals += " "
			}
			vals += fmt.Sprintf("%#x", h.X[base+i])
		}
		return vals
	}
	t.AppendRow(table.Row{group(0), group(8), group(16), group(24)})

	return t.Render()
}
