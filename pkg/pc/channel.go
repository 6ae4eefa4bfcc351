package pc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thesyncim/libgodatachannel/internal/engine"
	"github.com/thesyncim/libgodatachannel/internal/handle"
)

// channelCallbacks are registered for the whole life of every channel.
// Message delivery is registered only while a message handler exists.
var channelCallbacks = []engine.CallbackKind{
	engine.CallbackOpen,
	engine.CallbackClosed,
	engine.CallbackError,
	engine.CallbackBufferedAmountLow,
	engine.CallbackAvailable,
}

// channel is the state shared by DataChannel and Track.
type channel struct {
	api    *API
	id     int
	token  handle.Token
	owner  *PeerConnection
	delete func(id int) error

	// mu serializes subscription changes, polling and disposal.
	// Dispatch never takes it.
	mu         sync.Mutex
	disposed   atomic.Bool
	delivering bool
	inflight   atomic.Int32

	onOpen              handlerSet[func()]
	onClosed            handlerSet[func()]
	onError             handlerSet[func(error)]
	onMessage           handlerSet[func([]byte, bool)]
	onBufferedAmountLow handlerSet[func()]
	onAvailable         handlerSet[func()]

	// clearExtra drops handlers owned by the embedding type.
	clearExtra func()
}

// attach registers self, stores its token on the engine object and enables
// the lifetime callbacks. On failure the channel is left disposed and the
// caller must run c.teardown.
func (c *channel) attach(api *API, owner *PeerConnection, id int, self any, del func(int) error) error {
	c.api = api
	c.owner = owner
	c.id = id
	c.delete = del
	c.token = api.registry.Register(self)
	api.engine.SetUserPointer(id, uintptr(c.token))

	for _, kind := range channelCallbacks {
		if err := api.engine.SetCallback(id, kind, true); err != nil {
			c.disposed.Store(true)
			return fmt.Errorf("enable %s callback: %w", kind, err)
		}
	}
	return nil
}

// ID returns the engine id. Ids are reused by the engine after Close.
func (c *channel) ID() int { return c.id }

func (c *channel) active() error {
	if c.disposed.Load() {
		return errDisposed
	}
	return nil
}

// dispatch runs fn unless the channel is closed. It reports whether fn ran.
func (c *channel) dispatch(kind engine.CallbackKind, fn func()) bool {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	if c.disposed.Load() {
		c.api.metrics.Dropped(kind.String())
		return false
	}
	c.api.metrics.Dispatched(kind.String())
	fn()
	return true
}

// OnOpen registers a handler for the open event.
func (c *channel) OnOpen(fn func()) (unsubscribe func()) {
	return c.onOpen.subscribe(fn)
}

// OnClosed registers a handler for the closed event.
func (c *channel) OnClosed(fn func()) (unsubscribe func()) {
	return c.onClosed.subscribe(fn)
}

// OnError registers a handler for engine-reported errors. The error is a
// *ChannelError.
func (c *channel) OnError(fn func(err error)) (unsubscribe func()) {
	return c.onError.subscribe(fn)
}

// OnBufferedAmountLow registers a handler fired when the buffered amount
// drops to the threshold set with SetBufferedAmountLowThreshold.
func (c *channel) OnBufferedAmountLow(fn func()) (unsubscribe func()) {
	return c.onBufferedAmountLow.subscribe(fn)
}

// OnAvailable registers a handler fired when a message is buffered for
// TryReceive.
func (c *channel) OnAvailable(fn func()) (unsubscribe func()) {
	return c.onAvailable.subscribe(fn)
}

// OnMessage registers a message handler. While at least one message handler
// is registered the engine pushes every message to the handlers and
// TryReceive fails with ErrUsage.
func (c *channel) OnMessage(fn func(data []byte, binary bool)) (unsubscribe func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.active(); err != nil {
		return nil, err
	}
	id := c.onMessage.add(fn)
	if !c.delivering {
		if err := c.api.engine.SetCallback(c.id, engine.CallbackMessage, true); err != nil {
			c.onMessage.remove(id)
			return nil, err
		}
		c.delivering = true
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribeMessage(id) })
	}, nil
}

func (c *channel) unsubscribeMessage(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.onMessage.remove(id) {
		return
	}
	if c.onMessage.len() > 0 || !c.delivering || c.disposed.Load() {
		return
	}
	if err := c.api.engine.SetCallback(c.id, engine.CallbackMessage, false); err != nil {
		// delivering stays set: the engine still pushes, so TryReceive keeps
		// refusing and the next OnMessage does not re-enable.
		c.api.log.Warn().Err(err).Int("engine_id", c.id).Msg("disable message delivery")
		return
	}
	c.delivering = false
}

// Send sends a binary message. There is no local queue; see BufferedAmount.
func (c *channel) Send(data []byte) error {
	if err := c.active(); err != nil {
		return err
	}
	return c.api.engine.SendMessage(c.id, data, true)
}

// SendText sends a text message.
func (c *channel) SendText(s string) error {
	if err := c.active(); err != nil {
		return err
	}
	return c.api.engine.SendMessage(c.id, []byte(s), false)
}

// TryReceive copies the next buffered message into buf. It returns ok=false
// when nothing is buffered, and a *BufferTooSmallError with the required
// size as n when buf is too short; the message stays buffered in that case.
func (c *channel) TryReceive(buf []byte) (n int, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.active(); err != nil {
		return 0, false, err
	}
	if c.onMessage.len() > 0 {
		return 0, false, fmt.Errorf("%w: TryReceive with a message handler registered", ErrUsage)
	}
	if c.delivering {
		return 0, false, fmt.Errorf("%w: TryReceive while message delivery is enabled", ErrUsage)
	}

	n, _, err = c.api.engine.ReceiveMessage(c.id, buf)
	switch {
	case err == nil:
		return n, true, nil
	case errors.Is(err, engine.ErrNotAvailable):
		return 0, false, nil
	case errors.Is(err, engine.ErrBufferTooSmall):
		return n, false, &BufferTooSmallError{Required: n}
	default:
		return 0, false, err
	}
}

// IsOpen reports whether the channel is open.
func (c *channel) IsOpen() bool {
	if c.disposed.Load() {
		return false
	}
	return c.api.engine.IsOpen(c.id)
}

// IsClosed reports whether the channel is closed or has been released.
func (c *channel) IsClosed() bool {
	if c.disposed.Load() {
		return true
	}
	return c.api.engine.IsClosed(c.id)
}

// MaxMessageSize returns the largest message Send accepts.
func (c *channel) MaxMessageSize() (int, error) {
	if err := c.active(); err != nil {
		return 0, err
	}
	return c.api.engine.MaxMessageSize(c.id)
}

// BufferedAmount returns the number of bytes queued in the engine.
func (c *channel) BufferedAmount() (int, error) {
	if err := c.active(); err != nil {
		return 0, err
	}
	return c.api.engine.BufferedAmount(c.id)
}

// SetBufferedAmountLowThreshold sets the OnBufferedAmountLow threshold.
func (c *channel) SetBufferedAmountLowThreshold(amount int) error {
	if err := c.active(); err != nil {
		return err
	}
	return c.api.engine.SetBufferedAmountLowThreshold(c.id, amount)
}

// AvailableAmount returns the number of bytes buffered for TryReceive.
func (c *channel) AvailableAmount() (int, error) {
	if err := c.active(); err != nil {
		return 0, err
	}
	return c.api.engine.AvailableAmount(c.id)
}

// Shutdown closes the transport. The object stays valid until Close, and the
// closed event fires when the engine finishes.
func (c *channel) Shutdown() error {
	if err := c.active(); err != nil {
		return err
	}
	return c.api.engine.Close(c.id)
}

// Close releases the channel. It is idempotent and safe to call from any
// goroutine, including the channel's own handlers.
func (c *channel) Close() error {
	teardown, ok := c.dispose()
	if !ok {
		return nil
	}
	if c.owner != nil {
		c.owner.removeChild(c)
	}
	return c.api.runTeardown(teardown, c.inflight.Load() > 0)
}

// dispose marks the channel closed and returns the native teardown. Only the
// first call gets ok=true.
func (c *channel) dispose() (teardown func() error, ok bool) {
	c.mu.Lock()
	if !c.disposed.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return nil, false
	}
	delivering := c.delivering
	c.delivering = false
	c.mu.Unlock()

	c.clearHandlers()
	return func() error { return c.teardown(delivering) }, true
}

func (c *channel) clearHandlers() {
	c.onOpen.clear()
	c.onClosed.clear()
	c.onError.clear()
	c.onMessage.clear()
	c.onBufferedAmountLow.clear()
	c.onAvailable.clear()
	if c.clearExtra != nil {
		c.clearExtra()
	}
}

// teardown stops message delivery, deletes the engine object, then releases
// the token. No callback for id starts after the delete returns.
func (c *channel) teardown(delivering bool) error {
	var errs []error
	if delivering {
		if err := c.api.engine.SetCallback(c.id, engine.CallbackMessage, false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.delete(c.id); err != nil {
		errs = append(errs, fmt.Errorf("delete %d: %w", c.id, err))
	}
	c.api.registry.Release(c.token)
	return errors.Join(errs...)
}

// cached holds a lazily fetched immutable property. A value fetched before
// Close stays readable; a fetch after Close fails, since the engine id may
// already belong to another object.
type cached[T any] struct {
	mu sync.Mutex
	ok bool
	v  T
}

func (p *cached[T]) get(c *channel, fetch func() (T, error)) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ok {
		return p.v, nil
	}
	if err := c.active(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	p.v, p.ok = v, true
	return v, nil
}

func (p *cached[T]) set(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v, p.ok = v, true
}
