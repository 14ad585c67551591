package statemachine

// Export/seal lifecycle states. DRAFTING covers manifest assembly and
// may move to SEALED or ABORTED; both of those are terminal. The machine
// tracks state only and does not itself block adding artifacts.
const (
	ExportDrafting = "DRAFTING"
	ExportSealed   = "SEALED"
	ExportAborted  = "ABORTED"
)

var exportTable = NewTable(
	map[string][]string{
		ExportDrafting: {ExportSealed, ExportAborted},
	},
	[]string{ExportSealed, ExportAborted},
)

// NewExportMachine starts an export/seal lifecycle at DRAFTING.
func NewExportMachine() *Machine {
	return New(exportTable, ExportDrafting)
}
