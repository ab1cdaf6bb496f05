package tool

import "github.com/google/uuid"

// newRequestID generates a correlation id for a bus round-trip (AskUser,
// EnterPlanMode, ExitPlanMode). Using the same id generator as the bus
// package's subscription ids keeps id provenance consistent across the
// codebase.
func newRequestID() string {
	return uuid.NewString()
}
