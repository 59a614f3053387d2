package siteinit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckIdentifier(t *testing.T) {
	for _, tc := range [...]struct {
		name  string
		valid bool
	}{
		{`good_name`, true},
		{`x`, true},
		{`$el`, true},
		{`_private`, true},
		{`camelCase2`, true},
		{`1bad`, false},
		{`bad-name`, false},
		{`has space`, false},
		{``, false},
		{`naïve`, false},
		{`buffer`, false},
		{`window`, false},
		{`var`, false},
		{`this`, false},
		{`undefined`, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckIdentifier(tc.name)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidName)
			}
		})
	}
}
