package document

import (
	"github.com/nikhilbhutani/paperledger/internal/models"
)

// transitions encodes the forward-only lifecycle. Failure terminals are
// reachable only from the stage that failed; nothing leaves a terminal.
var transitions = map[string][]string{
	models.DocStatusReceived:    {models.DocStatusExtracted, models.DocStatusFailedExtraction},
	models.DocStatusExtracted:   {models.DocStatusStructured, models.DocStatusFailedStructuring},
	models.DocStatusStructured:  {models.DocStatusCategorized},
	models.DocStatusCategorized: {models.DocStatusParsed},
	models.DocStatusParsed:      {models.DocStatusComplete},

	models.DocStatusComplete:          nil,
	models.DocStatusFailedExtraction:  nil,
	models.DocStatusFailedStructuring: nil,
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of a status.
func NextStatuses(from string) []string {
	return transitions[from]
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	next, known := transitions[status]
	return known && len(next) == 0
}

