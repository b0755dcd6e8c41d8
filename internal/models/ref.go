package models

import "regexp"

var internalKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// OrderRef identifies an order either by its storage key or by its human-facing
// order id. Stores resolve the key first and fall back to the human id.
type OrderRef struct {
	key     string
	humanID string
}

func ByInternalKey(key string) OrderRef { return OrderRef{key: key} }

func ByHumanID(orderID string) OrderRef { return OrderRef{humanID: orderID} }

// ParseOrderRef turns a raw path parameter into a ref. A 24-hex string may be
// either form, so both are kept and tried in that order.
func ParseOrderRef(raw string) OrderRef {
	if internalKeyPattern.MatchString(raw) {
		return OrderRef{key: raw, humanID: raw}
	}
	return OrderRef{humanID: raw}
}

func (r OrderRef) InternalKey() (string, bool) { return r.key, r.key != "" }

func (r OrderRef) HumanID() (string, bool) { return r.humanID, r.humanID != "" }

func (r OrderRef) IsZero() bool { return r.key == "" && r.humanID == "" }

func (r OrderRef) String() string {
	if r.humanID != "" {
		return r.humanID
	}
	return r.key
}
