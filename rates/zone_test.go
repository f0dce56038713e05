package rates_test

import (
	"fmt"
	"testing"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/rates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := rates.NewZoneClassifier(rates.DefaultZoneRules())

	tests := []struct {
		name        string
		origin      string
		destination string
		want        models.Zone
	}{
		{"same locality", "110001", "110092", models.ZoneWithinCity},
		{"same state", "400001", "411001", models.ZoneWithinState},
		{"same region", "400001", "380001", models.ZoneWithinRegion},
		{"metro to metro", "110001", "560001", models.ZoneMetroToMetro},
		{"delhi to mumbai", "110001", "400001", models.ZoneMetroToMetro},
		{"north east destination", "700001", "781001", models.ZoneSpecial},
		{"j&k destination", "560001", "180001", models.ZoneSpecial},
		{"andaman", "600001", "744101", models.ZoneSpecial},
		{"lakshadweep", "110001", "682555", models.ZoneSpecial},
		{"rest of india", "110001", "751001", models.ZoneRestOfIndia},
		{"unknown circles fall through", "990001", "550001", models.ZoneRestOfIndia},
		{"city beats special", "180001", "180005", models.ZoneWithinCity},
		{"state beats special", "781001", "782001", models.ZoneWithinState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.origin, tt.destination)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_RejectsMalformedPincodes(t *testing.T) {
	c := rates.NewZoneClassifier(rates.DefaultZoneRules())

	for _, pin := range []string{"", "11000", "1100011", "011001", "11O001", "abcdef"} {
		t.Run(fmt.Sprintf("%q", pin), func(t *testing.T) {
			_, err := c.Classify(pin, "110001")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))

			_, err = c.Classify("110001", pin)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		})
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	c := rates.NewZoneClassifier(rates.DefaultZoneRules())

	var pins []string
	for p := 10; p <= 99; p += 3 {
		pins = append(pins, fmt.Sprintf("%d0%03d", p, p*7%1000))
	}
	pins = append(pins, "110001", "400001", "744101", "682551")

	for _, a := range pins {
		for _, b := range pins {
			first, err := c.Classify(a, b)
			require.NoError(t, err, "%s -> %s", a, b)
			assert.Contains(t, models.Zones, first)
			assert.NotEqual(t, models.ZoneNorthEastJK, first)

			again, err := c.Classify(a, b)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}
