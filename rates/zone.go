package rates

import (
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"
)

// Regions used to group states.
const (
	RegionNorth     = "North"
	RegionWest      = "West"
	RegionSouth     = "South"
	RegionEast      = "East"
	RegionNorthEast = "NorthEast"
)

// ZoneRuleSet is the prefix data the classifier evaluates. Locality is the
// first three digits of a pincode; state comes from the three-digit overrides
// and then the two-digit circle table.
type ZoneRuleSet struct {
	StateByPrefix   map[string]string
	StateOverrides  map[string]string
	RegionByState   map[string]string
	MetroPrefixes   map[string]string
	SpecialPrefixes []string
}

// DefaultZoneRules returns the Indian postal-circle rule set.
func DefaultZoneRules() ZoneRuleSet {
	states := map[string]string{
		"11": "Delhi",
		"12": "Haryana", "13": "Haryana",
		"14": "Punjab", "15": "Punjab", "16": "Punjab",
		"17": "Himachal Pradesh",
		"18": "Jammu & Kashmir", "19": "Jammu & Kashmir",
		"20": "Uttar Pradesh", "21": "Uttar Pradesh", "22": "Uttar Pradesh",
		"23": "Uttar Pradesh", "24": "Uttar Pradesh", "25": "Uttar Pradesh",
		"26": "Uttar Pradesh", "27": "Uttar Pradesh", "28": "Uttar Pradesh",
		"30": "Rajasthan", "31": "Rajasthan", "32": "Rajasthan", "33": "Rajasthan", "34": "Rajasthan",
		"36": "Gujarat", "37": "Gujarat", "38": "Gujarat", "39": "Gujarat",
		"40": "Maharashtra", "41": "Maharashtra", "42": "Maharashtra", "43": "Maharashtra", "44": "Maharashtra",
		"45": "Madhya Pradesh", "46": "Madhya Pradesh", "47": "Madhya Pradesh", "48": "Madhya Pradesh",
		"49": "Chhattisgarh",
		"50": "Telangana",
		"51": "Andhra Pradesh", "52": "Andhra Pradesh", "53": "Andhra Pradesh",
		"56": "Karnataka", "57": "Karnataka", "58": "Karnataka", "59": "Karnataka",
		"60": "Tamil Nadu", "61": "Tamil Nadu", "62": "Tamil Nadu", "63": "Tamil Nadu", "64": "Tamil Nadu",
		"67": "Kerala", "68": "Kerala", "69": "Kerala",
		"70": "West Bengal", "71": "West Bengal", "72": "West Bengal", "73": "West Bengal", "74": "West Bengal",
		"75": "Odisha", "76": "Odisha", "77": "Odisha",
		"78": "Assam",
		"79": "North Eastern States",
		"80": "Bihar", "81": "Bihar", "84": "Bihar", "85": "Bihar",
		"82": "Jharkhand", "83": "Jharkhand",
	}
	overrides := map[string]string{
		"160": "Chandigarh",
		"194": "Ladakh",
		"246": "Uttarakhand", "247": "Uttarakhand", "248": "Uttarakhand", "249": "Uttarakhand",
		"262": "Uttarakhand", "263": "Uttarakhand",
		"403": "Goa",
		"605": "Puducherry",
		"737": "Sikkim",
		"744": "Andaman & Nicobar",
	}
	regions := map[string]string{
		"Delhi": RegionNorth, "Haryana": RegionNorth, "Punjab": RegionNorth, "Chandigarh": RegionNorth,
		"Himachal Pradesh": RegionNorth, "Jammu & Kashmir": RegionNorth, "Ladakh": RegionNorth,
		"Uttar Pradesh": RegionNorth, "Uttarakhand": RegionNorth, "Rajasthan": RegionNorth,

		"Gujarat": RegionWest, "Maharashtra": RegionWest, "Goa": RegionWest,
		"Madhya Pradesh": RegionWest, "Chhattisgarh": RegionWest,

		"Telangana": RegionSouth, "Andhra Pradesh": RegionSouth, "Karnataka": RegionSouth,
		"Tamil Nadu": RegionSouth, "Puducherry": RegionSouth, "Kerala": RegionSouth,

		"West Bengal": RegionEast, "Odisha": RegionEast, "Bihar": RegionEast,
		"Jharkhand": RegionEast, "Andaman & Nicobar": RegionEast,

		"Assam": RegionNorthEast, "North Eastern States": RegionNorthEast, "Sikkim": RegionNorthEast,
	}
	metros := map[string]string{
		"110": "Delhi",
		"400": "Mumbai",
		"700": "Kolkata",
		"600": "Chennai",
		"560": "Bengaluru",
		"500": "Hyderabad",
		"380": "Ahmedabad",
		"411": "Pune",
	}
	return ZoneRuleSet{
		StateByPrefix:   states,
		StateOverrides:  overrides,
		RegionByState:   regions,
		MetroPrefixes:   metros,
		SpecialPrefixes: []string{"18", "19", "78", "79", "744", "68255"},
	}
}

// ZoneClassifier maps a pincode pair to a zone. It holds no mutable state.
type ZoneClassifier struct {
	rules ZoneRuleSet
}

func NewZoneClassifier(rules ZoneRuleSet) *ZoneClassifier {
	return &ZoneClassifier{rules: rules}
}

// ValidatePincode accepts exactly six digits with a non-zero first digit.
func ValidatePincode(pin string) error {
	if len(pin) != 6 || pin[0] == '0' {
		return apperrors.Validation("invalid pincode %q: must be 6 digits not starting with 0", pin)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return apperrors.Validation("invalid pincode %q: must be 6 digits not starting with 0", pin)
		}
	}
	return nil
}

// Classify evaluates the rules in order, first match wins.
func (c *ZoneClassifier) Classify(origin, destination string) (models.Zone, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if err := ValidatePincode(origin); err != nil {
		return "", err
	}
	if err := ValidatePincode(destination); err != nil {
		return "", err
	}

	if origin[:3] == destination[:3] {
		return models.ZoneWithinCity, nil
	}

	os, ds := c.state(origin), c.state(destination)
	if os == ds {
		return models.ZoneWithinState, nil
	}

	if or, dr := c.rules.RegionByState[os], c.rules.RegionByState[ds]; or != "" && or == dr {
		return models.ZoneWithinRegion, nil
	}

	if c.isMetro(origin) && c.isMetro(destination) {
		return models.ZoneMetroToMetro, nil
	}

	if c.isSpecial(origin) || c.isSpecial(destination) {
		return models.ZoneSpecial, nil
	}

	return models.ZoneRestOfIndia, nil
}

// state returns the state or UT name for a valid pincode. Circles missing from
// the table resolve to their two-digit prefix.
func (c *ZoneClassifier) state(pin string) string {
	if s, ok := c.rules.StateOverrides[pin[:3]]; ok {
		return s
	}
	if s, ok := c.rules.StateByPrefix[pin[:2]]; ok {
		return s
	}
	return pin[:2]
}

func (c *ZoneClassifier) isMetro(pin string) bool {
	_, ok := c.rules.MetroPrefixes[pin[:3]]
	return ok
}

func (c *ZoneClassifier) isSpecial(pin string) bool {
	for _, p := range c.rules.SpecialPrefixes {
		if strings.HasPrefix(pin, p) {
			return true
		}
	}
	return false
}
