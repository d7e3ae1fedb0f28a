package recording

import (
	"github.com/emusim/spiflashsim/chip"
	"github.com/emusim/spiflashsim/sim"
)

// A TransactionRow is one recorded bus transaction.
type TransactionRow struct {
	StartTime float64
	EndTime   float64
	Opcode    uint8
	Address   uint32
	Read      bool
	Length    int
}

// TransactionRecorder records completed bus transactions into a
// DataRecorder table. Attach it to the chip's transaction-done hook.
type TransactionRecorder struct {
	recorder DataRecorder
	table    string
}

// NewTransactionRecorder creates a TransactionRecorder writing into the
// given table.
func NewTransactionRecorder(
	recorder DataRecorder,
	table string,
) *TransactionRecorder {
	recorder.CreateTable(table, TransactionRow{})

	return &TransactionRecorder{
		recorder: recorder,
		table:    table,
	}
}

// Func implements sim.Hook.
func (r *TransactionRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != chip.HookPosTransactionDone {
		return
	}

	t := ctx.Item.(chip.Transaction)

	r.recorder.InsertData(r.table, TransactionRow{
		StartTime: float64(t.Start),
		EndTime:   float64(t.End),
		Opcode:    t.Opcode,
		Address:   t.Address,
		Read:      t.Read,
		Length:    t.Length,
	})
}
