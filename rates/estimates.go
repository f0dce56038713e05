package rates

import "courier-service/models"

const defaultEstimate = "5-7 days"

var deliveryEstimates = map[models.Zone]map[models.Mode]string{
	models.ZoneWithinCity: {
		models.ModeSurface: "1-2 days", models.ModeStandard: "1-2 days",
		models.ModeAir: "1 day", models.ModeExpress: "1 day", models.ModePremium: "Same day",
	},
	models.ZoneWithinState: {
		models.ModeSurface: "2-3 days", models.ModeStandard: "2-3 days",
		models.ModeAir: "1-2 days", models.ModeExpress: "1-2 days", models.ModePremium: "1 day",
	},
	models.ZoneWithinRegion: {
		models.ModeSurface: "3-4 days", models.ModeStandard: "3-4 days",
		models.ModeAir: "2-3 days", models.ModeExpress: "2 days", models.ModePremium: "1-2 days",
	},
	models.ZoneMetroToMetro: {
		models.ModeSurface: "4-5 days", models.ModeStandard: "3-5 days",
		models.ModeAir: "2-3 days", models.ModeExpress: "2 days", models.ModePremium: "1-2 days",
	},
	models.ZoneRestOfIndia: {
		models.ModeSurface: "5-7 days", models.ModeStandard: "5-6 days",
		models.ModeAir: "3-4 days", models.ModeExpress: "3 days", models.ModePremium: "2-3 days",
	},
	models.ZoneSpecial: {
		models.ModeSurface: "7-10 days", models.ModeStandard: "7-9 days",
		models.ModeAir: "4-6 days", models.ModeExpress: "4-5 days", models.ModePremium: "3-4 days",
	},
	models.ZoneNorthEastJK: {
		models.ModeSurface: "8-12 days", models.ModeStandard: "7-10 days",
		models.ModeAir: "5-7 days", models.ModeExpress: "4-6 days", models.ModePremium: "3-5 days",
	},
}

// DeliveryEstimate looks up the fixed estimate for a zone and mode.
func DeliveryEstimate(zone models.Zone, mode models.Mode) string {
	if byMode, ok := deliveryEstimates[zone]; ok {
		if est, ok := byMode[mode]; ok {
			return est
		}
	}
	return defaultEstimate
}
