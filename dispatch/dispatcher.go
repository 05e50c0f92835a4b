package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/pumpwatch/core"
)

// SubscriberRemover detaches a subscriber from every detector group after a
// permanent delivery failure.
type SubscriberRemover interface {
	RemoveSubscriber(id int64)
}

// Dispatcher fans a PumpEvent out to its group's subscribers, one
// rate-limited send per eligible recipient. Eligibility is re-checked per
// subscriber against the registry at send time: group membership only says
// who shares detection parameters, not who may be messaged right now.
type Dispatcher struct {
	registry     core.SubscriberRegistry
	notifier     core.Notifier
	limiter      *Limiter
	groups       SubscriberRemover
	openInterest core.OpenInterestSource
	log          core.Logger
	now          func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOpenInterest enriches outgoing alerts with cached open interest.
func WithOpenInterest(source core.OpenInterestSource) Option {
	return func(d *Dispatcher) {
		d.openInterest = source
	}
}

// WithClock overrides the dispatcher clock.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(
	registry core.SubscriberRegistry,
	notifier core.Notifier,
	limiter *Limiter,
	groups SubscriberRemover,
	log core.Logger,
	options ...Option,
) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		notifier: notifier,
		limiter:  limiter,
		groups:   groups,
		log:      log,
		now:      time.Now,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// SendAlerts delivers one pump event to every eligible subscriber. Blocked
// and vanished recipients are removed permanently; any other send failure
// is logged and not retried.
func (d *Dispatcher) SendAlerts(ctx context.Context, event core.PumpEvent, subscribers []int64) {
	text := d.formatAlert(event)

	for _, id := range subscribers {
		cfg, err := d.registry.Config(ctx, id)
		if err != nil {
			d.log.WithError(err).WithField("subscriber", id).Warn("skipping subscriber without config")
			continue
		}

		if !d.eligible(cfg, event) {
			continue
		}

		err = d.limiter.Do(ctx, func() error {
			return d.notifier.Send(ctx, id, text)
		})
		if err == nil {
			continue
		}

		if core.IsPermanentDeliveryFailure(err) {
			d.retire(ctx, id, err)
			continue
		}

		d.log.WithError(err).WithField("subscriber", id).Error("alert delivery failed")
	}
}

func (d *Dispatcher) eligible(cfg core.SubscriberConfig, event core.PumpEvent) bool {
	return cfg.Deliverable(d.now()) &&
		!cfg.ExchangeStopped(event.Platform) &&
		cfg.WantsPair(event.Pair)
}

// retire removes a subscriber after the channel reported it unreachable.
func (d *Dispatcher) retire(ctx context.Context, id int64, cause error) {
	d.groups.RemoveSubscriber(id)

	if err := d.registry.SetState(ctx, id, core.StateStopped); err != nil {
		d.log.WithError(err).WithField("subscriber", id).Error("failed to stop subscriber")
	}

	d.log.WithError(cause).WithField("subscriber", id).Info("subscriber retired after permanent delivery failure")
}

func (d *Dispatcher) formatAlert(event core.PumpEvent) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🚀 *%s* pump on %s\n", event.Pair, event.Platform)
	fmt.Fprintf(&sb, "Price: `%s` → `%s` (+%.2f%%)\n",
		formatPrice(event.MinPrice), formatPrice(event.LastPrice), event.DiffPercent)
	fmt.Fprintf(&sb, "Last trade volume: %.2f%% of window", event.VolumeChangePercent)

	if d.openInterest != nil {
		if snap, ok := d.openInterest.Snapshot(event.Platform, event.Pair); ok {
			fmt.Fprintf(&sb, "\nOpen interest: %s", formatPrice(snap.Current))
			if snap.DiffPercent != nil {
				fmt.Fprintf(&sb, " (%+.3f%%)", *snap.DiffPercent)
			}
		}
	}

	return sb.String()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
