package syncqueue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Handler delivers one operation to its endpoint. A delivery succeeds iff
// the response carries a non-error HTTP status; anything else (timeout,
// transport error, non-2xx) is a failure routed to the retry path.
type Handler func(ctx context.Context, op Operation) error

// Endpoints names the outbound collaborators invoked by the default
// handlers. These are external to this core.
type Endpoints struct {
	SendMessage    string
	CreateResource string
	UpdateResource string
	DeleteResource string
}

// HTTPHandlers builds the default per-kind delivery handlers. Each handler
// is thin: it shapes the payload into a request and judges the status code.
// The operation id travels as X-Idempotency-Key so the server can
// deduplicate retried deliveries.
func HTTPHandlers(ep Endpoints, client *http.Client) map[Kind]Handler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return map[Kind]Handler{
		KindSendMessage:    deliverJSON(client, http.MethodPost, ep.SendMessage),
		KindCreateResource: deliverJSON(client, http.MethodPost, ep.CreateResource),
		KindUpdateResource: deliverJSON(client, http.MethodPut, ep.UpdateResource),
		KindDeleteResource: deliverJSON(client, http.MethodDelete, ep.DeleteResource),
	}
}

func deliverJSON(client *http.Client, method, url string) Handler {
	return func(ctx context.Context, op Operation) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(op.Payload))
		if err != nil {
			return fmt.Errorf("build %s request: %w", op.Kind, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", op.ID)

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("deliver %s: %w", op.Kind, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("deliver %s: status %d", op.Kind, resp.StatusCode)
		}
		return nil
	}
}
