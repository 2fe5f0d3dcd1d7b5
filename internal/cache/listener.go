package cache

import "context"

// ChangeEvent reports that some product rows changed, from any client.
type ChangeEvent struct {
	ProductIDs []string
}

// Listen consumes change events until the context ends or the channel
// closes. Every event invalidates the product list; the per-product entries
// named by the event are invalidated precisely.
func Listen(ctx context.Context, events <-chan ChangeEvent, store *Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			keys := make([]string, 0, len(event.ProductIDs)+1)
			keys = append(keys, KeyProductList)
			for _, productID := range event.ProductIDs {
				keys = append(keys, KeyProduct(productID))
			}
			store.Invalidate(keys...)
		}
	}
}
