package document

import (
	"testing"

	"github.com/nikhilbhutani/paperledger/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.DocStatusReceived, models.DocStatusExtracted, true},
		{models.DocStatusReceived, models.DocStatusFailedExtraction, true},
		{models.DocStatusExtracted, models.DocStatusStructured, true},
		{models.DocStatusExtracted, models.DocStatusFailedStructuring, true},
		{models.DocStatusStructured, models.DocStatusCategorized, true},
		{models.DocStatusCategorized, models.DocStatusParsed, true},
		{models.DocStatusParsed, models.DocStatusComplete, true},

		// No skipping stages.
		{models.DocStatusReceived, models.DocStatusParsed, false},
		{models.DocStatusExtracted, models.DocStatusComplete, false},

		// No leaving terminals.
		{models.DocStatusComplete, models.DocStatusParsed, false},
		{models.DocStatusFailedExtraction, models.DocStatusReceived, false},
		{models.DocStatusFailedStructuring, models.DocStatusStructured, false},

		// No going backwards.
		{models.DocStatusParsed, models.DocStatusCategorized, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.DocStatusComplete))
	assert.True(t, IsTerminal(models.DocStatusFailedExtraction))
	assert.True(t, IsTerminal(models.DocStatusFailedStructuring))
	assert.False(t, IsTerminal(models.DocStatusReceived))
	assert.False(t, IsTerminal(models.DocStatusParsed))
	assert.False(t, IsTerminal("bogus"))
}

// The status endpoint reports IsTerminal and NextStatuses side by side;
// they must agree for every known status.
func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for status := range transitions {
		if IsTerminal(status) {
			assert.Empty(t, NextStatuses(status), status)
		} else {
			assert.NotEmpty(t, NextStatuses(status), status)
		}
	}
}
