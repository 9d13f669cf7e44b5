package interaction

import (
	"context"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"archtdea/internal/preference"
)

// Autopilot answers the protocol unattended: every shown candidate becomes
// an aspiration-level preference anchored on its own objective vector.
type Autopilot struct {
	Protocol   *Protocol
	Confidence int
	Interval   time.Duration
}

// Run drives the protocol until ctx is done.
func (a *Autopilot) Run(ctx context.Context) error {
	logger := klog.FromContext(ctx).WithName("autopilot")
	interval := a.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	confidence := a.Confidence
	if confidence == 0 {
		confidence = preference.DefaultConfidence
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		snap := a.Protocol.Snapshot()
		if snap.Seq == seen {
			continue
		}
		seen = snap.Seq
		for _, ev := range a.respond(snap, confidence) {
			if err := a.Protocol.Post(ev); err != nil {
				logger.V(4).Info("Event refused", "event", ev.Name(), "err", err)
				break
			}
		}
	}
}

func (a *Autopilot) respond(snap Snapshot, confidence int) []Event {
	switch snap.State {
	case AwaitingUserReady:
		return []Event{Ready{}}
	case AwaitingReport:
		return []Event{ReportDone{}}
	case ErrorDialog:
		return []Event{Acknowledge{}, SelectPreference{Kind: preference.KindNone}, Finish{}}
	case ShowingCandidate:
		if snap.Candidate == nil {
			return nil
		}
		return []Event{
			SelectPreference{Kind: preference.KindAspirationLevels},
			SetField{Field: FieldReference, Text: joinUnit(snap.Candidate.Objectives)},
			SetField{Field: FieldWeights, Text: joinOnes(len(snap.Candidate.Objectives))},
			SelectConfidence{Level: confidence},
			Finish{},
		}
	default:
		return nil
	}
}

func joinUnit(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(min(max(v, 0), 1), 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func joinOnes(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "1"
	}
	return strings.Join(parts, ",")
}
