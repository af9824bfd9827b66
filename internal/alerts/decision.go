package alerts

import (
	"fmt"
	"time"

	"github.com/lvidal/pricealert/internal/models"
)

// Decision is the outcome of evaluating a single alert against the current
// market price. It carries no side effects; persistence and dispatch are the
// engine's job.
type Decision struct {
	Notify  bool
	Message string

	// DeactivateAfterNotify is true for every alert type except the
	// multi-threshold percentage path, which keeps watching its remaining
	// thresholds after a notification.
	DeactivateAfterNotify bool

	// TriggeredThreshold is the index of the threshold that fired for
	// multi-threshold percentage alerts, -1 otherwise.
	TriggeredThreshold int
}

// Evaluate maps (alert type, baseline, market price, parameters, calendar
// date) to a notification decision. Legacy rows without an alert type are
// evaluated as any_drop.
func Evaluate(alert *models.PriceAlert, marketPrice float64, now time.Time) Decision {
	decision := Decision{TriggeredThreshold: -1}
	baseline := alert.CurrentPrice

	switch alert.EffectiveType() {
	case models.AlertTypeFixedPrice:
		if alert.TargetPrice != nil && marketPrice <= *alert.TargetPrice {
			decision.Notify = true
			decision.DeactivateAfterNotify = true
			decision.Message = fmt.Sprintf("Target price reached! €%.2f (target: €%.2f)", marketPrice, *alert.TargetPrice)
		}

	case models.AlertTypePercentage:
		if baseline <= 0 {
			break
		}
		drop := (baseline - marketPrice) / baseline * 100

		if thresholds := alert.MultipleThresholds.Data(); len(thresholds) > 0 {
			for i, threshold := range thresholds {
				if threshold.Triggered || drop < threshold.Percentage {
					continue
				}
				decision.Notify = true
				decision.TriggeredThreshold = i
				decision.Message = fmt.Sprintf("%.0f%% discount! Now €%.2f (was €%.2f)", threshold.Percentage, marketPrice, baseline)
				break
			}
		} else if alert.PercentageThreshold != nil && *alert.PercentageThreshold > 0 && drop >= *alert.PercentageThreshold {
			decision.Notify = true
			decision.DeactivateAfterNotify = true
			decision.Message = fmt.Sprintf("%.1f%% discount! Now €%.2f (was €%.2f)", drop, marketPrice, baseline)
		}

	case models.AlertTypeSeasonal:
		if inSeasonalWindow(alert.SeasonalContext.Data(), now) && marketPrice < baseline {
			decision.Notify = true
			decision.DeactivateAfterNotify = true
			decision.Message = fmt.Sprintf("Seasonal deal detected! Now €%.2f", marketPrice)
		}

	default: // any_drop
		if marketPrice < baseline {
			decision.Notify = true
			decision.DeactivateAfterNotify = true
			decision.Message = fmt.Sprintf("Price drop! €%.2f (you save €%.2f)", marketPrice, baseline-marketPrice)
		}
	}

	return decision
}

// inSeasonalWindow reports whether now falls inside a window the alert opted
// into: Black Friday week (Nov 24-30), Christmas (Dec 20-31), or the summer
// sales months (June through August).
func inSeasonalWindow(ctx models.SeasonalContext, now time.Time) bool {
	month := now.Month()
	day := now.Day()

	switch {
	case ctx.BlackFriday && month == time.November && day >= 24 && day <= 30:
		return true
	case ctx.Christmas && month == time.December && day >= 20:
		return true
	case ctx.SummerSale && month >= time.June && month <= time.August:
		return true
	}
	return false
}
