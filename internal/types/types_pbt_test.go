package types

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: every valid numeric address type parses back to itself and its name parses to the same value
func TestAddressTypeRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("numeric and named forms agree", prop.ForAll(
		func(n int) bool {
			byNumber, err := ParseAddressType(strconv.Itoa(n))
			if err != nil {
				return false
			}
			byName, err := ParseAddressType(byNumber.String())
			if err != nil {
				return false
			}
			return byNumber == AddressType(n) && byName == byNumber
		},
		gen.IntRange(-1, 7),
	))

	properties.Property("out of range codes are rejected", prop.ForAll(
		func(n int) bool {
			_, err := ParseAddressType(strconv.Itoa(n))
			return err != nil
		},
		gen.IntRange(8, 1000),
	))

	properties.TestingRun(t)
}
