package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type pubSubClient interface {
	pinger
	Publisher(name string) *gcppubsub.Publisher
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// orderedPublishers hands out one ordering-enabled publisher per topic.
func orderedPublishers(client pubSubClient) publisherFactory {
	var (
		mu    sync.Mutex
		cache = map[string]publisher{}
	)
	return func(topic string) publisher {
		mu.Lock()
		defer mu.Unlock()
		if pub, ok := cache[topic]; ok {
			return pub
		}
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = true
		cache[topic] = orderedPublisher{raw}
		return cache[topic]
	}
}

type orderedPublisher struct {
	*gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
