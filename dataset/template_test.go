package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBasenameTemplate(t *testing.T) {
	tests := []struct {
		template string
		valid    bool
	}{
		{"part-{i}.parquet", true},
		{"{i}", true},
		{"part.parquet", false},
		{"part-{i}-{i}.parquet", false},
		{"dir/part-{i}.parquet", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			err := ValidateBasenameTemplate(tt.template)
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			var te *ErrInvalidTemplate
			assert.ErrorAs(t, err, &te)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "out/a/x-part-3.csv", filename("part-{i}.csv", "out/a", "x-", 3))
	assert.Equal(t, "part-0.csv", filename("part-{i}.csv", "", "", 0))
}
