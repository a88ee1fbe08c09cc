package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		image, pdf, dwg bool
		want            string
	}{
		{true, true, true, OverallAllSuccess},
		{true, true, false, OverallPartial},
		{true, false, true, OverallPartial},
		{false, true, true, OverallPartial},
		{true, false, false, OverallPartial},
		{false, true, false, OverallPartial},
		{false, false, true, OverallPartial},
		{false, false, false, OverallAllFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OverallStatus(tt.image, tt.pdf, tt.dwg),
			"image=%t pdf=%t dwg=%t", tt.image, tt.pdf, tt.dwg)
	}
}
