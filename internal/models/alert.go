package models

import "time"

// AlertKind identifies which metric an alert observes.
type AlertKind string

const (
	AlertKindPrice          AlertKind = "price"
	AlertKindPortfolioValue AlertKind = "portfolio_value"
	AlertKindPositionWeight AlertKind = "position_weight"
	AlertKindDayChange      AlertKind = "day_change"
	AlertKindTotalReturn    AlertKind = "total_return"
)

// AlertType is the alert variant. Symbol is set for price and position_weight
// alerts only.
type AlertType struct {
	Kind   AlertKind `json:"kind"`
	Symbol string    `json:"symbol,omitempty"`
}

// NeedsSymbol reports whether the kind is scoped to one position.
func (k AlertKind) NeedsSymbol() bool {
	return k == AlertKindPrice || k == AlertKindPositionWeight
}

// Valid reports whether k is a known alert kind.
func (k AlertKind) Valid() bool {
	switch k {
	case AlertKindPrice, AlertKindPortfolioValue, AlertKindPositionWeight, AlertKindDayChange, AlertKindTotalReturn:
		return true
	}
	return false
}

// AlertCondition is how the observed metric is compared with the target.
type AlertCondition string

const (
	ConditionAbove         AlertCondition = "above"
	ConditionBelow         AlertCondition = "below"
	ConditionPercentChange AlertCondition = "percent_change"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionPercentChange:
		return true
	}
	return false
}

// PortfolioAlert fires once when its condition holds. IsTriggered never
// goes back to false and TriggeredAt is set only on the first trigger.
type PortfolioAlert struct {
	ID           string         `json:"id"`
	Type         AlertType      `json:"alert_type"`
	Condition    AlertCondition `json:"condition"`
	TargetValue  float64        `json:"target_value"`
	CurrentValue float64        `json:"current_value"`
	IsTriggered  bool           `json:"is_triggered"`
	CreatedAt    time.Time      `json:"created_at"`
	TriggeredAt  *time.Time     `json:"triggered_at,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a *PortfolioAlert) Clone() PortfolioAlert {
	out := *a
	if a.TriggeredAt != nil {
		t := *a.TriggeredAt
		out.TriggeredAt = &t
	}
	return out
}
