package counter

import (
	"context"
	"sort"
	"strconv"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/cache"
)

const (
	webhookEventsKey = "billing:counters:webhooks"
	webhookErrorsKey = "billing:counters:webhook_errors"
)

// EventCount is the number of deliveries seen for one event type
type EventCount struct {
	EventType string `json:"event_type"`
	Received  int64  `json:"received"`
	Failed    int64  `json:"failed"`
}

// AddWebhookEvent counts one webhook delivery of eventType in Redis
func AddWebhookEvent(ctx context.Context, eventType string) error {
	return cache.GetClient().HIncrBy(ctx, webhookEventsKey, eventType, 1).Err()
}

// AddWebhookError counts one delivery whose handlers failed
func AddWebhookError(ctx context.Context, eventType string) error {
	return cache.GetClient().HIncrBy(ctx, webhookErrorsKey, eventType, 1).Err()
}

// WebhookEventCounts returns the counters per event type, sorted by type
func WebhookEventCounts(ctx context.Context) ([]EventCount, error) {
	rdb := cache.GetClient()
	received, err := rdb.HGetAll(ctx, webhookEventsKey).Result()
	if err != nil {
		return nil, err
	}
	failed, err := rdb.HGetAll(ctx, webhookErrorsKey).Result()
	if err != nil {
		return nil, err
	}

	counts := make([]EventCount, 0, len(received))
	for eventType, v := range received {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		f, _ := strconv.ParseInt(failed[eventType], 10, 64)
		counts = append(counts, EventCount{EventType: eventType, Received: n, Failed: f})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].EventType < counts[j].EventType })
	return counts, nil
}

// Reset drops all webhook counters
func Reset(ctx context.Context) error {
	return cache.GetClient().Del(ctx, webhookEventsKey, webhookErrorsKey).Err()
}
