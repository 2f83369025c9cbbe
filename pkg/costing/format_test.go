package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "3 eggs", FormatQuantity(d("3"), "egg"))
	assert.Equal(t, "1 egg", FormatQuantity(d("1.0000"), "egg"))
	assert.Equal(t, "0.25 kg", FormatQuantity(d("0.25"), "kg"))
	assert.Equal(t, "2 ml", FormatQuantity(d("2"), "ml"))
	assert.Equal(t, "1.5", FormatQuantity(d("1.5"), ""))
}
