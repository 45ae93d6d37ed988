package websocket

import "context"

// Forward publishes every value from subscribe as a messageType broadcast until ctx ends.
func Forward[T any](ctx context.Context, hub *Hub, messageType string, subscribe func() (<-chan T, func())) {
	updates, cancel := subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case value, ok := <-updates:
			if !ok {
				return
			}
			hub.Publish(messageType, value)
		}
	}
}
