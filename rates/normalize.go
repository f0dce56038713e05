package rates

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"
)

// quoteAliases maps each canonical field to the payload keys it may arrive
// under, in priority order. Dotted keys navigate nested objects.
var quoteAliases = map[string][]string{
	"seller":      {"sellerId", "seller_id", "seller"},
	"zone":        {"zone", "zoneName", "zone_name"},
	"origin":      {"pickupPincode", "pickup_pincode", "fromPincode", "from_pincode", "originPincode", "origin_pincode", "pickup.pincode", "origin"},
	"destination": {"deliveryPincode", "delivery_pincode", "toPincode", "to_pincode", "destinationPincode", "destination_pincode", "delivery.pincode", "destination"},
	"weight":      {"weight", "weightKg", "weight_kg", "package.weight", "package.weight_kg"},
	"dimensions":  {"dimensions", "package.dimensions"},
	"length":      {"length", "length_cm", "l"},
	"width":       {"width", "breadth", "width_cm", "b", "w"},
	"height":      {"height", "height_cm", "h"},
	"payment":     {"paymentType", "payment_type", "paymentMode", "payment_mode"},
	"collectable": {"codCollectableAmount", "cod_collectable_amount", "collectableAmount", "collectable_amount", "codAmount", "cod_amount", "orderValue", "order_value", "declaredValue", "declared_value"},
	"courier":     {"courier", "courierCode", "courier_code", "carrier"},
	"mode":        {"mode", "serviceMode", "service_mode", "shippingMode", "shipping_mode"},
	"includeRTO":  {"includeRTO", "include_rto", "isRTO", "rto"},
}

// NormalizeQuoteInput turns a loosely shaped quote payload into the canonical
// request. It is the only place that knows about field aliases.
func NormalizeQuoteInput(payload map[string]any) (models.CalculationRequest, error) {
	var req models.CalculationRequest

	req.SellerID = lookupString(payload, quoteAliases["seller"])
	req.OriginPincode = lookupString(payload, quoteAliases["origin"])
	req.DestinationPincode = lookupString(payload, quoteAliases["destination"])
	req.Courier = strings.ToLower(lookupString(payload, quoteAliases["courier"]))

	if z := lookupString(payload, quoteAliases["zone"]); z != "" {
		zone, err := models.ParseZone(z)
		if err != nil {
			return req, apperrors.Validation("%v", err)
		}
		req.Zone = zone
	}

	weight, ok, err := lookupFloat(payload, quoteAliases["weight"])
	if err != nil {
		return req, err
	}
	if !ok {
		return req, apperrors.Validation("weight is required")
	}
	req.WeightKg = weight

	if dims, ok := lookup(payload, quoteAliases["dimensions"]).(map[string]any); ok {
		d, err := normalizeDimensions(dims)
		if err != nil {
			return req, err
		}
		req.Dimensions = d
	} else if lookup(payload, quoteAliases["length"]) != nil {
		d, err := normalizeDimensions(payload)
		if err != nil {
			return req, err
		}
		req.Dimensions = d
	}

	if m := lookupString(payload, quoteAliases["mode"]); m != "" {
		mode, err := models.ParseMode(m)
		if err != nil {
			return req, apperrors.Validation("%v", err)
		}
		req.Mode = mode
	}

	req.PaymentType = models.PaymentPrepaid
	if p := lookupString(payload, quoteAliases["payment"]); p != "" {
		pt, err := models.ParsePaymentType(p)
		if err != nil {
			return req, apperrors.Validation("%v", err)
		}
		req.PaymentType = pt
	}

	if amt, ok, err := lookupFloat(payload, quoteAliases["collectable"]); err != nil {
		return req, err
	} else if ok {
		req.CODCollectableAmount = amt
	}

	req.IncludeRTO = lookupBool(payload, quoteAliases["includeRTO"])
	return req, nil
}

func normalizeDimensions(m map[string]any) (*models.Dimensions, error) {
	l, _, err := lookupFloat(m, quoteAliases["length"])
	if err != nil {
		return nil, err
	}
	w, _, err := lookupFloat(m, quoteAliases["width"])
	if err != nil {
		return nil, err
	}
	h, _, err := lookupFloat(m, quoteAliases["height"])
	if err != nil {
		return nil, err
	}
	if l == 0 && w == 0 && h == 0 {
		return nil, nil
	}
	return &models.Dimensions{LengthCm: l, WidthCm: w, HeightCm: h}, nil
}

func lookup(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v := getPath(m, k); v != nil {
			return v
		}
	}
	return nil
}

func lookupString(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := getPath(m, k).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// lookupFloat reports whether any alias was present; a present but
// non-numeric value is a validation error.
func lookupFloat(m map[string]any, keys []string) (float64, bool, error) {
	for _, k := range keys {
		v := getPath(m, k)
		if v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return checkFinite(k, n)
		case float32:
			return checkFinite(k, float64(n))
		case int:
			return float64(n), true, nil
		case int64:
			return float64(n), true, nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return 0, true, apperrors.Validation("%s must be numeric", k)
			}
			return checkFinite(k, f)
		case string:
			if strings.TrimSpace(n) == "" {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0, true, apperrors.Validation("%s must be numeric, got %q", k, n)
			}
			return checkFinite(k, f)
		default:
			return 0, true, apperrors.Validation("%s must be numeric", k)
		}
	}
	return 0, false, nil
}

// checkFinite rejects NaN and the infinities, which ParseFloat happily
// accepts from strings like "NaN" or "Inf".
func checkFinite(key string, f float64) (float64, bool, error) {
	if !finite(f) {
		return 0, true, apperrors.Validation("%s must be a finite number", key)
	}
	return f, true, nil
}

func lookupBool(m map[string]any, keys []string) bool {
	for _, k := range keys {
		switch v := getPath(m, k).(type) {
		case bool:
			return v
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				return b
			}
		}
	}
	return false
}

// getPath navigates a dot-separated key into nested maps.
func getPath(m map[string]any, path string) any {
	var cur any = m
	for _, p := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := mm[p]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}
