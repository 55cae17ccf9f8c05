package notification_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/notification"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

type capturePublisher struct {
	mu       sync.Mutex
	channels []string
	messages []notification.Message
	err      error
}

func (c *capturePublisher) Publish(_ context.Context, channel string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.channels = append(c.channels, channel)
	c.messages = append(c.messages, message.(notification.Message))
	return nil
}

var _ = Describe("Notifier", func() {
	var (
		bus       *events.EventBus
		publisher *capturePublisher
	)

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
		publisher = &capturePublisher{}
		notification.NewNotifier(publisher, "", logger.Discard()).Register(bus)
	})

	It("forwards every domain event to the channel", func() {
		ctx := context.Background()
		refund := events.NewRefundSucceededEvent(11, 7, "r-1", "b-1-full-100", 50000)
		Expect(bus.PublishSync(ctx, refund)).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewBookingOverlapSkippedEvent(12, 7, "b-new-full-1", 3, 150000))).To(Succeed())

		Expect(publisher.channels).To(Equal([]string{notification.DefaultChannel, notification.DefaultChannel}))
		Expect(publisher.messages[0].ID).To(Equal(refund.EventID()))
		Expect(publisher.messages[0].Type).To(Equal(events.EventTypeRefundSucceeded))
		Expect(publisher.messages[0].Data).To(HaveKeyWithValue("merchant_refund_id", "r-1"))
		Expect(publisher.messages[1].Type).To(Equal(events.EventTypeBookingOverlapSkipped))
	})

	It("reports publisher failures", func() {
		publisher.err = errors.New("connection reset")
		err := bus.PublishSync(context.Background(), events.NewExtensionRequestedEvent(1, 2, 3, time.Now()))
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})
})

var _ = Describe("RedisPublisher", func() {
	It("fails fast when redis is unreachable", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := notification.NewRedisPublisher(ctx, internal.RedisConfig{Addr: "127.0.0.1:1"})
		Expect(err).To(HaveOccurred())
	})
})
