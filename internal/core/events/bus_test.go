package events_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("runs async handlers after the publishing context is cancelled", func() {
		var seen atomic.Int32
		release := make(chan struct{})
		bus.Subscribe(events.EventTypeRefundSucceeded, func(ctx context.Context, e events.Event) error {
			<-release
			if ctx.Err() == nil {
				seen.Add(1)
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		Expect(bus.Publish(ctx, events.NewRefundSucceededEvent(1, 2, "r-1", "b-1-full-100", 50000))).To(Succeed())
		cancel()
		close(release)

		drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
		defer drainCancel()
		Expect(bus.Drain(drainCtx)).To(Succeed())
		Expect(seen.Load()).To(Equal(int32(1)))
	})

	It("subscribes one handler to several event types", func() {
		var types []string
		bus.SubscribeMany(func(_ context.Context, e events.Event) error {
			types = append(types, e.EventType())
			return nil
		}, events.EventTypeBookingMaterialized, events.EventTypeBookingOverlapSkipped)

		ctx := context.Background()
		Expect(bus.PublishSync(ctx, events.NewBookingMaterializedEvent(1, 2, 3, "b-new-full-1"))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewBookingOverlapSkippedEvent(3, 2, "b-new-full-2", 1, 150000))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewRefundSucceededEvent(1, 2, "r-1", "b-1-full-100", 50000))).To(Succeed())
		Expect(types).To(Equal([]string{events.EventTypeBookingMaterialized, events.EventTypeBookingOverlapSkipped}))
	})

	It("reports sync handler errors and recovers panics", func() {
		bus.Subscribe(events.EventTypeExtensionRequested, func(context.Context, events.Event) error {
			return errors.New("boom")
		})
		err := bus.PublishSync(context.Background(), events.NewExtensionRequestedEvent(1, 2, 3, time.Now()))
		Expect(err).To(MatchError(ContainSubstring("boom")))

		bus.Subscribe(events.EventTypeRefundSucceeded, func(context.Context, events.Event) error {
			panic("unexpected")
		})
		err = bus.PublishSync(context.Background(), events.NewRefundSucceededEvent(1, 2, "r-1", "b-1-full-100", 1))
		Expect(err).To(MatchError(ContainSubstring("panicked")))
	})

	It("is a no-op without subscribers", func() {
		Expect(bus.Publish(context.Background(), events.NewRefundSucceededEvent(1, 2, "r-1", "b-1", 1))).To(Succeed())
		Expect(bus.Drain(context.Background())).To(Succeed())
	})
})
