package tools

import (
	"mentor/internal/retrieval"
)

// RegisterBuiltins wires the built-in coaching tools into a registry.
func RegisterBuiltins(reg *Registry, gateway *retrieval.Gateway) {
	reg.Register(NewTextbookTool(gateway))
	reg.Register(NewTaskListTool())
	reg.Register(NewFeedbackTool())
}
