// Package controller implements the request lifecycle of the weather widget:
// it turns user intents into geocode, forecast and locate operations, discards
// superseded settlements and reports every state change to subscribers.
//
// All state lives on one event-loop goroutine. Intents, debounce timer fires and
// operation settlements are closures executed on that loop, in arrival order.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMinQueryLength = 2
	DefaultLocateTimeout  = 10 * time.Second
	DefaultBufferSize     = 16
)

// kind identifies one class of network operation. At most one operation per
// kind is outstanding.
type kind int

const (
	kindGeocode kind = iota
	kindForecast
	kindLocate
	numKinds
)

func (k kind) String() string {
	switch k {
	case kindGeocode:
		return "geocode"
	case kindForecast:
		return "forecast"
	case kindLocate:
		return "locate"
	}
	return "unknown"
}

// slot tracks the latest operation of one kind. cancel is nil once the
// operation settled or was cancelled without a successor.
type slot struct {
	seq    uint64
	cancel context.CancelFunc
	issued time.Time
}

// Controller is the request-lifecycle state machine. Create it with New, run it
// with Start and stop it by cancelling the Start context.
type Controller struct {
	geocoder   weather.Geocoder
	forecaster weather.Forecaster
	locator    weather.Locator

	clock         clockwork.Clock
	logger        *zap.Logger
	metrics       *observability.Metrics
	window        time.Duration
	minQuery      int
	locateTimeout time.Duration
	zone          string
	bufferSize    int
	bootstrap     *weather.Place

	inbox    chan func()
	ctx      context.Context
	stop     context.CancelFunc
	start    sync.Once
	started  atomic.Bool
	loopDone chan struct{}
	wg       sync.WaitGroup

	latest atomic.Pointer[Event]

	// Owned by the loop goroutine.
	state       State
	seq         uint64
	unit        weather.Unit
	place       *weather.Place
	slots       [numKinds]slot
	debounce    clockwork.Timer
	debounceGen uint64
	autoQuery   string
	subs        map[chan Event]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the clock driving the debounce timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = metrics }
}

// WithDebounce sets the quiet window for search text. Zero geocodes every
// search intent immediately.
func WithDebounce(window time.Duration) Option {
	return func(c *Controller) { c.window = window }
}

func WithMinQueryLength(n int) Option {
	return func(c *Controller) { c.minQuery = n }
}

func WithLocateTimeout(d time.Duration) Option {
	return func(c *Controller) { c.locateTimeout = d }
}

// WithTimeZone sets the zone given to device-location places whose fix carries none.
func WithTimeZone(zone string) Option {
	return func(c *Controller) { c.zone = zone }
}

func WithUnit(unit weather.Unit) Option {
	return func(c *Controller) { c.unit = unit }
}

// WithBootstrapPlace makes Start select place before handling any intent.
func WithBootstrapPlace(place weather.Place) Option {
	return func(c *Controller) { c.bootstrap = &place }
}

// WithBufferSize sets the capacity of subscriber channels.
func WithBufferSize(n int) Option {
	return func(c *Controller) { c.bufferSize = n }
}

// New creates a controller in the Idle state. A nil locator reports every
// device-location request as unsupported.
func New(geocoder weather.Geocoder, forecaster weather.Forecaster, locator weather.Locator, opts ...Option) *Controller {
	if locator == nil {
		locator = weather.LocatorFunc(func(context.Context) (weather.Position, error) {
			return weather.Position{}, fmt.Errorf("%w: no device locator", weather.ErrUnsupported)
		})
	}

	c := &Controller{
		geocoder:      geocoder,
		forecaster:    forecaster,
		locator:       locator,
		clock:         clockwork.NewRealClock(),
		logger:        zap.NewNop(),
		window:        DefaultDebounce,
		minQuery:      DefaultMinQueryLength,
		locateTimeout: DefaultLocateTimeout,
		zone:          time.Local.String(),
		bufferSize:    DefaultBufferSize,
		unit:          weather.Celsius,
		inbox:         make(chan func()),
		loopDone:      make(chan struct{}),
		subs:          make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minQuery < 1 {
		c.minQuery = 1
	}
	if c.bufferSize < 1 {
		c.bufferSize = 1
	}

	c.state = State{Status: StatusIdle, Unit: c.unit}
	c.latest.Store(&Event{State: c.state})
	return c
}

// Start launches the event loop. It returns immediately; the loop runs until
// ctx is cancelled. Calling Start more than once has no effect.
func (c *Controller) Start(ctx context.Context) {
	c.start.Do(func() {
		c.ctx, c.stop = context.WithCancel(ctx)
		c.started.Store(true)

		go c.run()
	})
}

// Close stops the loop and waits for it and all operations to exit.
func (c *Controller) Close() {
	if c.started.Load() {
		c.stop()
	}
	c.Wait()
}

// Wait blocks until the loop and all operation goroutines have exited.
func (c *Controller) Wait() {
	if !c.started.Load() {
		return
	}
	<-c.loopDone
	c.wg.Wait()
}

// Done is closed when the event loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.loopDone
}

// State returns the most recently emitted state.
func (c *Controller) State() State {
	return c.latest.Load().State
}

// Latest returns the most recently emitted event.
func (c *Controller) Latest() Event {
	return *c.latest.Load()
}

// Subscribe returns a channel of state transitions. The current state is
// delivered first. Sends never block: a subscriber that falls behind by more
// than the buffer loses its oldest pending events, never the newest. The
// channel is closed when ctx ends or the controller stops.
func (c *Controller) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, c.bufferSize)
	ok := c.apply(func() {
		c.subs[ch] = struct{}{}
		ch <- *c.latest.Load()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			select {
			case <-ctx.Done():
				c.post(func() { c.unsubscribe(ch) })
			case <-c.ctx.Done():
			}
		}()
	})
	if !ok {
		close(ch)
	}
	return ch
}

// SubmitSearchText handles an edit of the search text.
func (c *Controller) SubmitSearchText(query string) {
	q := strings.TrimSpace(query)
	c.apply(func() { c.searchText(q) })
}

// SubmitSearch handles an explicit search (button or Enter): it selects the
// first suggestion for query, geocoding immediately if none are resolved yet.
func (c *Controller) SubmitSearch(query string) {
	q := strings.TrimSpace(query)
	c.apply(func() { c.submitSearch(q) })
}

// SelectPlace fetches the forecast for place.
func (c *Controller) SelectPlace(place weather.Place) {
	c.apply(func() { c.selectPlace(place) })
}

// RequestDeviceLocation asks the locator for a fix and loads its forecast.
func (c *Controller) RequestDeviceLocation() {
	c.apply(c.requestLocation)
}

// ToggleUnits switches the display unit. It never issues network work.
func (c *Controller) ToggleUnits(unit weather.Unit) {
	c.apply(func() { c.toggleUnits(unit) })
}

// Refresh re-fetches the forecast of the last resolved place, if any.
func (c *Controller) Refresh() {
	c.apply(func() {
		if c.place == nil {
			return
		}
		c.selectPlace(*c.place)
	})
}

func (c *Controller) run() {
	defer close(c.loopDone)

	if c.bootstrap != nil {
		c.selectPlace(*c.bootstrap)
	}

	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.ctx.Done():
			c.shutdown()
			return
		}
	}
}

func (c *Controller) shutdown() {
	c.disarm()
	for k := range c.slots {
		c.cancelOp(kind(k))
	}
	for ch := range c.subs {
		c.unsubscribe(ch)
	}
	c.logger.Debug("controller stopped", zap.Uint64("seq", c.seq))
}

// post hands fn to the loop. It reports false once the loop is stopping.
func (c *Controller) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// apply runs fn on the loop and waits for it to return.
func (c *Controller) apply(fn func()) bool {
	if !c.started.Load() {
		return false
	}
	done := make(chan struct{})
	if !c.post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

func (c *Controller) unsubscribe(ch chan Event) {
	if _, ok := c.subs[ch]; !ok {
		return
	}
	delete(c.subs, ch)
	close(ch)
}

func (c *Controller) searchText(q string) {
	c.cancelOp(kindLocate)
	c.cancelOp(kindForecast)

	if utf8.RuneCountInString(q) < c.minQuery {
		c.toIdle()
		return
	}
	if c.state.Status == StatusSearching && c.state.Query == q {
		return
	}

	c.cancelOp(kindGeocode)
	c.autoQuery = ""
	c.emit(State{Status: StatusSearching, Query: q})

	if c.window <= 0 {
		c.disarm()
		c.startGeocode(q)
		return
	}
	c.arm(q)
}

func (c *Controller) submitSearch(q string) {
	c.cancelOp(kindLocate)
	c.cancelOp(kindForecast)

	if utf8.RuneCountInString(q) < c.minQuery {
		c.toIdle()
		return
	}

	if c.state.Status == StatusSearching && c.state.Query == q && c.state.SuggestionsReady {
		if len(c.state.Suggestions) > 0 {
			c.selectPlace(c.state.Suggestions[0])
		}
		return
	}

	c.disarm()
	c.cancelOp(kindGeocode)
	c.autoQuery = q
	if c.state.Status != StatusSearching || c.state.Query != q {
		c.emit(State{Status: StatusSearching, Query: q})
	}
	c.startGeocode(q)
}

func (c *Controller) toIdle() {
	c.disarm()
	c.cancelOp(kindGeocode)
	c.autoQuery = ""
	if c.state.Status == StatusIdle {
		return
	}
	c.emit(State{Status: StatusIdle})
}

func (c *Controller) selectPlace(place weather.Place) {
	c.disarm()
	c.cancelOp(kindGeocode)
	c.cancelOp(kindLocate)
	c.autoQuery = ""

	c.place = &place
	c.emit(State{Status: StatusLoadingWeather, Place: &place})

	issue(c, kindForecast,
		func(ctx context.Context) (weather.Snapshot, error) {
			return c.forecaster.Forecast(ctx, place.Latitude, place.Longitude)
		},
		func(snapshot weather.Snapshot, err error) {
			if err != nil {
				c.fail(ReasonWeather, err, &place)
				return
			}
			c.emit(State{Status: StatusReady, Place: &place, Snapshot: &snapshot})
		})
}

func (c *Controller) requestLocation() {
	c.disarm()
	c.cancelOp(kindGeocode)
	c.cancelOp(kindForecast)
	c.autoQuery = ""

	c.emit(State{Status: StatusResolvingLocation})

	issue(c, kindLocate,
		func(ctx context.Context) (weather.Position, error) {
			ctx, cancel := context.WithTimeout(ctx, c.locateTimeout)
			defer cancel()
			pos, err := c.locator.Locate(ctx)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, weather.ErrTimeout) {
				err = fmt.Errorf("%w: %w", weather.ErrTimeout, err)
			}
			return pos, err
		},
		func(pos weather.Position, err error) {
			if err != nil {
				c.place = nil
				c.fail(ReasonGeolocation, err, nil)
				return
			}
			c.selectPlace(weather.PlaceFromPosition(pos, c.zone))
		})
}

func (c *Controller) toggleUnits(unit weather.Unit) {
	if unit == c.unit {
		return
	}
	c.unit = unit
	c.emit(c.state)
}

func (c *Controller) startGeocode(q string) {
	issue(c, kindGeocode,
		func(ctx context.Context) ([]weather.Place, error) {
			return c.geocoder.Geocode(ctx, q)
		},
		func(places []weather.Place, err error) {
			if err != nil {
				c.autoQuery = ""
				c.fail(ReasonGeocode, err, nil)
				return
			}
			if places == nil {
				places = []weather.Place{}
			}
			if c.autoQuery == q {
				c.autoQuery = ""
				if len(places) > 0 {
					c.selectPlace(places[0])
					return
				}
			}
			c.emit(State{Status: StatusSearching, Query: q, Suggestions: places, SuggestionsReady: true})
		})
}

func (c *Controller) fail(reason Reason, err error, place *weather.Place) {
	c.logger.Warn("operation failed", zap.String("reason", string(reason)), zap.Error(err))
	c.emit(State{Status: StatusFailed, Reason: reason, Err: err, Place: place})
}

// arm (re)starts the debounce timer for q. A timer stopped before firing
// counts as a coalesced intent.
func (c *Controller) arm(q string) {
	if c.debounce != nil && c.debounce.Stop() {
		c.metrics.Coalesced()
	}
	c.debounceGen++
	gen := c.debounceGen
	c.debounce = c.clock.AfterFunc(c.window, func() {
		c.post(func() { c.fire(gen, q) })
	})
}

func (c *Controller) fire(gen uint64, q string) {
	if gen != c.debounceGen || c.debounce == nil {
		return
	}
	c.debounce = nil
	c.startGeocode(q)
}

func (c *Controller) disarm() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGen++
}

// cancelOp aborts the outstanding operation of kind k. Its settlement, if one
// still arrives, is discarded.
func (c *Controller) cancelOp(k kind) {
	s := &c.slots[k]
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	c.logger.Debug("operation cancelled", zap.Stringer("kind", k), zap.Uint64("seq", s.seq))
}

// issue starts an operation of kind k, cancelling its predecessor. work runs on
// its own goroutine; settle runs on the loop only if the operation is still the
// latest of its kind and was not cancelled.
func issue[T any](c *Controller, k kind, work func(context.Context) (T, error), settle func(T, error)) {
	c.cancelOp(k)

	s := &c.slots[k]
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(c.ctx)
	s.cancel = cancel
	s.issued = c.clock.Now()
	issued := s.issued

	c.metrics.OperationIssued(k.String())
	c.logger.Debug("operation issued", zap.Stringer("kind", k), zap.Uint64("seq", seq))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		result, err := work(ctx)
		c.post(func() {
			cur := &c.slots[k]
			switch {
			case seq != cur.seq:
				c.settled(k, seq, "stale", issued)
				return
			case cur.cancel == nil || errors.Is(err, context.Canceled):
				c.settled(k, seq, "cancelled", issued)
				return
			}
			cur.cancel = nil

			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			c.settled(k, seq, outcome, issued)
			settle(result, err)
		})
	}()
}

func (c *Controller) settled(k kind, seq uint64, outcome string, issued time.Time) {
	elapsed := c.clock.Since(issued)
	c.metrics.OperationSettled(k.String(), outcome, elapsed)
	c.logger.Debug("operation settled",
		zap.Stringer("kind", k),
		zap.Uint64("seq", seq),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	)
}

// emit publishes state as the next transition. Unit is always the current one.
func (c *Controller) emit(state State) {
	state.Unit = c.unit
	c.seq++
	c.state = state
	ev := Event{Seq: c.seq, State: state}
	c.latest.Store(&ev)

	c.metrics.Transition(state.Status.String())
	c.logger.Debug("state transition",
		zap.Uint64("seq", c.seq),
		zap.Stringer("status", state.Status),
		zap.String("query", state.Query),
		zap.String("reason", string(state.Reason)),
	)

	for ch := range c.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest buffered event. The loop is the only sender,
		// so the send below always finds room.
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}
