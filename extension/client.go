package extension

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samsarahq/go/oops"
	"golang.org/x/sync/singleflight"

	"github.com/thundergraph/gateway/gwerrors"
)

// WireClient is a Host that talks to one extension process over the
// sandbox boundary: Prepare/Resolve/CreateSubscription are CBOR-over-HTTP
// POSTs (spec §6), and a live subscription's events arrive over a
// WebSocket the extension hands back a URL for, grounded on the
// teacher's own gorilla/websocket dependency (already used for
// subscription transport elsewhere in its graphql package) rather than
// introducing a second streaming library.
type WireClient struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer

	mu      sync.Mutex
	streams map[SubscriptionHandle]*websocket.Conn
	nextID  uint64

	// prepareGroup collapses concurrent Prepare calls for the same
	// (kind, site) -- plan materialization may walk the same field from
	// several goroutines, and every such caller wants the identical
	// prepared artifact, the textbook fit for singleflight.Group.
	prepareGroup singleflight.Group
}

// NewWireClient builds a WireClient posting to baseURL (e.g.
// "http://127.0.0.1:9090" for a sidecar extension process).
func NewWireClient(baseURL string, client *http.Client) *WireClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &WireClient{
		baseURL: baseURL,
		client:  client,
		dialer:  websocket.DefaultDialer,
		streams: map[SubscriptionHandle]*websocket.Conn{},
	}
}

func (c *WireClient) post(ctx context.Context, path string, reqBody interface{}, respBody interface{}) error {
	body, err := encodeCBOR(reqBody)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return gwerrors.Internal(err, "build extension request for %s", path)
	}
	httpReq.Header.Set("Content-Type", "application/cbor")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return gwerrors.Internal(err, "extension %s unreachable", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gwerrors.Internal(err, "reading extension %s response", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gwerrors.Internal(fmt.Errorf("status %d: %s", resp.StatusCode, raw), "extension %s returned an error status", path)
	}
	return decodeCBOR(raw, respBody)
}

func (c *WireClient) Prepare(ctx context.Context, kind Kind, site Site) (Prepared, error) {
	key := kind.String() + "|" + site.TypeName + "." + site.FieldName
	v, err, _ := c.prepareGroup.Do(key, func() (interface{}, error) {
		var resp prepareResponse
		if err := c.post(ctx, "/prepare", prepareRequest{Kind: kind.String(), Type: site.TypeName, Field: site.FieldName}, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, gwerrors.Internal(nil, "extension prepare(%s %s.%s): %s", kind, site.TypeName, site.FieldName, resp.Error)
		}
		return Prepared(resp.Prepared), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Prepared), nil
}

func (c *WireClient) Resolve(ctx context.Context, kind Kind, prepared Prepared, shared SharedContext, args []ResolveArg) ([]ResolveValue, error) {
	wireArgs := make([]resolveArgWire, len(args))
	for i, a := range args {
		wireArgs[i] = toArgWire(a)
	}
	var resp resolveResponse
	req := resolveRequest{Kind: kind.String(), Prepared: prepared, Shared: toSharedWire(shared), Args: wireArgs}
	if err := c.post(ctx, "/resolve", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(args) {
		return nil, gwerrors.Internal(nil, "extension resolve(%s): got %d results for %d args", kind, len(resp.Results), len(args))
	}
	out := make([]ResolveValue, len(resp.Results))
	for i, r := range resp.Results {
		rv := ResolveValue{Value: r.Value}
		if r.Error != "" {
			rv.Err = gwerrors.Internal(nil, "%s", r.Error)
		}
		out[i] = rv
	}
	return out, nil
}

func (c *WireClient) CreateSubscription(ctx context.Context, prepared Prepared, shared SharedContext, arg ResolveArg) (SubscriptionHandle, []byte, error) {
	var resp createSubscriptionResponse
	req := createSubscriptionRequest{Prepared: prepared, Shared: toSharedWire(shared), Arg: toArgWire(arg)}
	if err := c.post(ctx, "/subscribe", req, &resp); err != nil {
		return 0, nil, err
	}
	if resp.Error != "" {
		return 0, nil, gwerrors.Internal(nil, "extension create_subscription: %s", resp.Error)
	}

	conn, _, err := c.dialer.DialContext(ctx, resp.StreamURL, nil)
	if err != nil {
		return 0, nil, gwerrors.Internal(err, "dialing extension subscription stream %s", resp.StreamURL)
	}

	c.mu.Lock()
	id := SubscriptionHandle(atomic.AddUint64(&c.nextID, 1))
	c.streams[id] = conn
	c.mu.Unlock()

	return id, resp.DedupKey, nil
}

func (c *WireClient) NextItem(ctx context.Context, handle SubscriptionHandle) (interface{}, bool, error) {
	c.mu.Lock()
	conn, ok := c.streams[handle]
	c.mu.Unlock()
	if !ok {
		return nil, false, gwerrors.Internal(nil, "extension: no open subscription %d", handle)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, true, nil
		}
		return nil, false, oops.Wrapf(err, "reading extension subscription %d", handle)
	}

	var frame subscriptionItemWire
	if err := decodeCBOR(raw, &frame); err != nil {
		return nil, false, err
	}
	if frame.Error != "" {
		return nil, false, gwerrors.Internal(nil, "extension subscription %d: %s", handle, frame.Error)
	}
	return frame.Item, frame.Done, nil
}

func (c *WireClient) DropSubscription(ctx context.Context, handle SubscriptionHandle) error {
	c.mu.Lock()
	conn, ok := c.streams[handle]
	delete(c.streams, handle)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}
