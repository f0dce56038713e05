package models

import (
	"fmt"
	"strings"
)

// PaymentType is how the consignee pays for the order.
type PaymentType string

const (
	PaymentPrepaid PaymentType = "prepaid"
	PaymentCOD     PaymentType = "cod"
)

// Zone names as they show up in imports, admin forms and partner payloads.
var zoneAliases = map[string]Zone{
	"withincity":     ZoneWithinCity,
	"local":          ZoneWithinCity,
	"intracity":      ZoneWithinCity,
	"zonea":          ZoneWithinCity,
	"withinstate":    ZoneWithinState,
	"intrastate":     ZoneWithinState,
	"zoneb":          ZoneWithinState,
	"withinregion":   ZoneWithinRegion,
	"regional":       ZoneWithinRegion,
	"zonec":          ZoneWithinRegion,
	"metrotometro":   ZoneMetroToMetro,
	"metro":          ZoneMetroToMetro,
	"zoned":          ZoneMetroToMetro,
	"restofindia":    ZoneRestOfIndia,
	"roi":            ZoneRestOfIndia,
	"national":       ZoneRestOfIndia,
	"zonee":          ZoneRestOfIndia,
	"specialzone":    ZoneSpecial,
	"special":        ZoneSpecial,
	"zonef":          ZoneSpecial,
	"northeastjk":    ZoneNorthEastJK,
	"northeastandjk": ZoneNorthEastJK,
	"nejk":           ZoneNorthEastJK,
}

var modeAliases = map[string]Mode{
	"surface":  ModeSurface,
	"ground":   ModeSurface,
	"air":      ModeAir,
	"express":  ModeExpress,
	"standard": ModeStandard,
	"premium":  ModePremium,
}

var paymentAliases = map[string]PaymentType{
	"prepaid":           PaymentPrepaid,
	"paid":              PaymentPrepaid,
	"online":            PaymentPrepaid,
	"cod":               PaymentCOD,
	"cashondelivery":    PaymentCOD,
	"collectondelivery": PaymentCOD,
}

// canon strips case and punctuation so "Within City", "within_city" and
// "WITHIN-CITY" compare equal.
func canon(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ParseZone(s string) (Zone, error) {
	if z, ok := zoneAliases[canon(s)]; ok {
		return z, nil
	}
	return "", fmt.Errorf("unknown zone %q", s)
}

func ParseMode(s string) (Mode, error) {
	if m, ok := modeAliases[canon(s)]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

func ParsePaymentType(s string) (PaymentType, error) {
	if p, ok := paymentAliases[canon(s)]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown payment type %q", s)
}
