package controller_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/weather"
)

const waitTimeout = 2 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	seoul = weather.Place{ID: 1835848, Name: "Seoul", Country: "South Korea", Latitude: 37.5665, Longitude: 126.9780, TimeZone: "Asia/Seoul"}
	busan = weather.Place{ID: 1838524, Name: "Busan", Country: "South Korea", Latitude: 35.1028, Longitude: 129.0403, TimeZone: "Asia/Seoul"}
	paris = weather.Place{ID: 2988507, Name: "Paris", Admin1: "Île-de-France", Country: "France", Latitude: 48.8534, Longitude: 2.3488, TimeZone: "Europe/Paris"}
)

func snapshotAt(temp float64) weather.Snapshot {
	return weather.Snapshot{
		Current:  weather.Current{TemperatureC: temp, WeatherCode: 0},
		Daily:    []weather.Day{{MinC: temp - 5, MaxC: temp + 5}},
		TimeZone: "Asia/Seoul",
	}
}

// call is one blocked provider invocation. It returns only when the test
// replies, whether or not its context was cancelled.
type call[T any] struct {
	arg   string
	ctx   context.Context
	reply chan result[T]
}

type result[T any] struct {
	val T
	err error
}

func (c *call[T]) succeed(v T)    { c.reply <- result[T]{val: v} }
func (c *call[T]) fail(err error) { c.reply <- result[T]{err: err} }
func (c *call[T]) cancelled() bool {
	return errors.Is(c.ctx.Err(), context.Canceled)
}

type fake[T any] struct {
	calls chan *call[T]
	done  chan struct{}
}

func newFake[T any]() *fake[T] {
	return &fake[T]{calls: make(chan *call[T], 16), done: make(chan struct{})}
}

func (f *fake[T]) serve(ctx context.Context, arg string) (T, error) {
	c := &call[T]{arg: arg, ctx: ctx, reply: make(chan result[T], 1)}
	var zero T
	select {
	case f.calls <- c:
	case <-f.done:
		return zero, context.Canceled
	}
	select {
	case r := <-c.reply:
		return r.val, r.err
	case <-f.done:
		return zero, context.Canceled
	}
}

func (f *fake[T]) next(t *testing.T) *call[T] {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for provider call")
		return nil
	}
}

func (f *fake[T]) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected provider call %q", c.arg)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	t       *testing.T
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
	geo     *fake[[]weather.Place]
	fc      *fake[weather.Snapshot]
	loc     *fake[weather.Position]
	ctrl    *controller.Controller
	events  <-chan controller.Event
}

func newHarness(t *testing.T, opts ...controller.Option) *harness {
	return newHarnessWithLocator(t, nil, opts...)
}

func newHarnessWithLocator(t *testing.T, locator weather.Locator, opts ...controller.Option) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		clock:   clockwork.NewFakeClock(),
		metrics: observability.NewMetricsForTesting(),
		geo:     newFake[[]weather.Place](),
		fc:      newFake[weather.Snapshot](),
		loc:     newFake[weather.Position](),
	}

	geocoder := weather.GeocoderFunc(func(ctx context.Context, query string) ([]weather.Place, error) {
		return h.geo.serve(ctx, query)
	})
	forecaster := weather.ForecasterFunc(func(ctx context.Context, lat, lon float64) (weather.Snapshot, error) {
		return h.fc.serve(ctx, fmt.Sprintf("%.4f,%.4f", lat, lon))
	})
	if locator == nil {
		locator = weather.LocatorFunc(func(ctx context.Context) (weather.Position, error) {
			return h.loc.serve(ctx, "locate")
		})
	}

	base := []controller.Option{
		controller.WithClock(h.clock),
		controller.WithMetrics(h.metrics),
		controller.WithLogger(zaptest.NewLogger(t)),
		controller.WithTimeZone("UTC"),
	}
	h.ctrl = controller.New(geocoder, forecaster, locator, append(base, opts...)...)
	h.ctrl.Start(context.Background())

	t.Cleanup(func() {
		close(h.geo.done)
		close(h.fc.done)
		close(h.loc.done)
		h.ctrl.Close()
	})

	h.events = h.ctrl.Subscribe(context.Background())
	h.next() // current state
	return h
}

// next returns the next transition.
func (h *harness) next() controller.State {
	h.t.Helper()
	select {
	case ev, ok := <-h.events:
		require.True(h.t, ok, "event channel closed")
		return ev.State
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for transition")
		return controller.State{}
	}
}

// quiet asserts that no transition is pending.
func (h *harness) quiet() {
	h.t.Helper()
	select {
	case ev := <-h.events:
		h.t.Fatalf("unexpected transition to %s", ev.State.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) settled(kind, outcome string) float64 {
	return testutil.ToFloat64(h.metrics.OperationsSettled.WithLabelValues(kind, outcome))
}

func (h *harness) waitSettled(kind, outcome string, n float64) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.settled(kind, outcome) == n
	}, waitTimeout, 5*time.Millisecond, "%s settlements with outcome %s", kind, outcome)
}

func (h *harness) issued(kind string) float64 {
	return testutil.ToFloat64(h.metrics.OperationsIssued.WithLabelValues(kind))
}

// ready drives the controller to Ready(place, snap) through SelectPlace.
func (h *harness) ready(place weather.Place, snap weather.Snapshot) controller.State {
	h.t.Helper()
	h.ctrl.SelectPlace(place)
	require.Equal(h.t, controller.StatusLoadingWeather, h.next().Status)
	h.fc.next(h.t).succeed(snap)
	st := h.next()
	require.Equal(h.t, controller.StatusReady, st.Status)
	return st
}

func TestInitialStateIsIdle(t *testing.T) {
	h := newHarness(t)

	st := h.ctrl.State()
	assert.Equal(t, controller.StatusIdle, st.Status)
	assert.Equal(t, weather.Celsius, st.Unit)
	assert.Nil(t, st.Place)
	assert.Empty(t, st.Suggestions)
}

func TestSearchScenarioSeoToReady(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Seo")
	st := h.next()
	assert.Equal(t, controller.StatusSearching, st.Status)
	assert.Equal(t, "Seo", st.Query)
	assert.False(t, st.SuggestionsReady)

	h.clock.Advance(controller.DefaultDebounce)
	geo := h.geo.next(t)
	assert.Equal(t, "Seo", geo.arg)
	geo.succeed([]weather.Place{seoul, busan})

	st = h.next()
	assert.Equal(t, controller.StatusSearching, st.Status)
	assert.True(t, st.SuggestionsReady)
	assert.Equal(t, []weather.Place{seoul, busan}, st.Suggestions)

	h.ctrl.SelectPlace(seoul)
	st = h.next()
	assert.Equal(t, controller.StatusLoadingWeather, st.Status)
	require.NotNil(t, st.Place)
	assert.Equal(t, seoul, *st.Place)

	fc := h.fc.next(t)
	assert.Equal(t, "37.5665,126.9780", fc.arg)
	fc.succeed(snapshotAt(21))

	st = h.next()
	assert.Equal(t, controller.StatusReady, st.Status)
	assert.Equal(t, seoul, *st.Place)
	require.NotNil(t, st.Snapshot)
	assert.InDelta(t, 21, st.Snapshot.Current.TemperatureC, 1e-9)
	assert.Equal(t, st, h.ctrl.State())
}

func TestSearchBurstIssuesOneGeocodeForLastQuery(t *testing.T) {
	h := newHarness(t)

	for _, q := range []string{"Se", "Seo", "Seou", "Seoul"} {
		h.ctrl.SubmitSearchText(q)
		assert.Equal(t, q, h.next().Query)
		h.clock.Advance(controller.DefaultDebounce / 3)
	}
	h.geo.none(t)

	h.clock.Advance(controller.DefaultDebounce)
	geo := h.geo.next(t)
	assert.Equal(t, "Seoul", geo.arg)
	h.geo.none(t)

	assert.Equal(t, float64(1), h.issued("geocode"))
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.DebounceCoalesced))

	geo.succeed([]weather.Place{seoul})
	st := h.next()
	assert.Equal(t, "Seoul", st.Query)
	assert.Equal(t, []weather.Place{seoul}, st.Suggestions)
}

func TestDuplicateSearchTextIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Seo")
	h.next()
	h.ctrl.SubmitSearchText("  Seo ")
	h.quiet()

	h.clock.Advance(controller.DefaultDebounce)
	assert.Equal(t, "Seo", h.geo.next(t).arg)
	h.geo.none(t)
}

func TestShortQueryGoesIdleWithoutNetwork(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("S")
	h.quiet()
	h.clock.Advance(time.Second)
	h.geo.none(t)
	assert.Equal(t, controller.StatusIdle, h.ctrl.State().Status)
}

func TestEmptyTextCancelsOutstandingGeocode(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Par")
	h.next()
	h.clock.Advance(controller.DefaultDebounce)
	geo := h.geo.next(t)

	h.ctrl.SubmitSearchText("")
	st := h.next()
	assert.Equal(t, controller.StatusIdle, st.Status)
	assert.Empty(t, st.Suggestions)
	assert.True(t, geo.cancelled())

	// The transport ignored the abort and still answered.
	geo.succeed([]weather.Place{paris})
	h.waitSettled("geocode", "cancelled", 1)
	h.quiet()
	assert.Equal(t, controller.StatusIdle, h.ctrl.State().Status)
	assert.Empty(t, h.ctrl.State().Suggestions)
}

func TestEmptyTextDisarmsPendingDebounce(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Par")
	h.next()
	h.ctrl.SubmitSearchText("")
	assert.Equal(t, controller.StatusIdle, h.next().Status)

	h.clock.Advance(time.Second)
	h.geo.none(t)
	assert.Zero(t, h.issued("geocode"))
}

func TestNewSearchSupersedesOutstandingGeocode(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Pa")
	h.next()
	h.clock.Advance(controller.DefaultDebounce)
	first := h.geo.next(t)

	h.ctrl.SubmitSearchText("Par")
	h.next()
	assert.True(t, first.cancelled())
	h.clock.Advance(controller.DefaultDebounce)
	second := h.geo.next(t)

	second.succeed([]weather.Place{paris})
	st := h.next()
	assert.Equal(t, "Par", st.Query)

	first.succeed([]weather.Place{seoul})
	h.waitSettled("geocode", "stale", 1)
	h.quiet()
	assert.Equal(t, []weather.Place{paris}, h.ctrl.State().Suggestions)
}

func TestForecastSupersessionLaterSettlesFirst(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(seoul)
	h.next()
	p1 := h.fc.next(t)

	h.ctrl.SelectPlace(busan)
	st := h.next()
	assert.Equal(t, busan, *st.Place)
	p2 := h.fc.next(t)
	assert.True(t, p1.cancelled())

	p2.succeed(snapshotAt(18))
	st = h.next()
	assert.Equal(t, controller.StatusReady, st.Status)
	assert.Equal(t, busan, *st.Place)

	p1.succeed(snapshotAt(30))
	h.waitSettled("forecast", "stale", 1)
	h.quiet()

	final := h.ctrl.State()
	assert.Equal(t, busan, *final.Place)
	assert.InDelta(t, 18, final.Snapshot.Current.TemperatureC, 1e-9)
}

func TestForecastSupersessionEarlierSettlesFirst(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(seoul)
	h.next()
	p1 := h.fc.next(t)
	h.ctrl.SelectPlace(busan)
	h.next()
	p2 := h.fc.next(t)

	p1.succeed(snapshotAt(30))
	h.waitSettled("forecast", "stale", 1)
	h.quiet()
	assert.Equal(t, controller.StatusLoadingWeather, h.ctrl.State().Status)

	p2.fail(weather.ErrNetwork)
	st := h.next()
	assert.Equal(t, controller.StatusFailed, st.Status)
	assert.Equal(t, controller.ReasonWeather, st.Reason)
	assert.Equal(t, busan, *st.Place)
	assert.Nil(t, st.Snapshot)
}

func TestCancelledFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(seoul)
	h.next()
	op := h.fc.next(t)

	h.ctrl.SubmitSearchText("Bu")
	assert.Equal(t, controller.StatusSearching, h.next().Status)
	assert.True(t, op.cancelled())

	op.fail(fmt.Errorf("%w: %w", weather.ErrCancelled, context.Canceled))
	h.waitSettled("forecast", "cancelled", 1)
	h.quiet()
	assert.Equal(t, controller.StatusSearching, h.ctrl.State().Status)
}

func TestToggleUnitsWhileReadyReusesSnapshot(t *testing.T) {
	h := newHarness(t)
	before := h.ready(seoul, snapshotAt(21))

	h.ctrl.ToggleUnits(weather.Fahrenheit)
	st := h.next()
	assert.Equal(t, controller.StatusReady, st.Status)
	assert.Equal(t, weather.Fahrenheit, st.Unit)
	assert.Same(t, before.Place, st.Place)
	assert.Same(t, before.Snapshot, st.Snapshot)

	h.fc.none(t)
	h.geo.none(t)
	assert.Equal(t, float64(1), h.issued("forecast"))

	h.ctrl.ToggleUnits(weather.Fahrenheit)
	h.quiet()
}

func TestUnitAppliesToLaterStates(t *testing.T) {
	h := newHarness(t, controller.WithUnit(weather.Fahrenheit))
	assert.Equal(t, weather.Fahrenheit, h.ctrl.State().Unit)

	h.ctrl.SubmitSearchText("Seo")
	assert.Equal(t, weather.Fahrenheit, h.next().Unit)
}

func TestGeocodeFailureKeepsLastPlace(t *testing.T) {
	h := newHarness(t)
	h.ready(seoul, snapshotAt(21))

	h.ctrl.SubmitSearchText("Xyz")
	h.next()
	h.clock.Advance(controller.DefaultDebounce)
	h.geo.next(t).fail(fmt.Errorf("%w: connection refused", weather.ErrNetwork))

	st := h.next()
	assert.Equal(t, controller.StatusFailed, st.Status)
	assert.Equal(t, controller.ReasonGeocode, st.Reason)
	assert.ErrorIs(t, st.Err, weather.ErrNetwork)

	h.ctrl.Refresh()
	st = h.next()
	assert.Equal(t, controller.StatusLoadingWeather, st.Status)
	assert.Equal(t, seoul, *st.Place)
	assert.Equal(t, "37.5665,126.9780", h.fc.next(t).arg)
}

func TestRefreshRetriesAfterWeatherError(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(paris)
	h.next()
	h.fc.next(t).fail(weather.ErrInvalidResponse)
	st := h.next()
	require.Equal(t, controller.StatusFailed, st.Status)
	assert.Equal(t, paris, *st.Place)

	h.ctrl.Refresh()
	assert.Equal(t, controller.StatusLoadingWeather, h.next().Status)
	h.fc.next(t).succeed(snapshotAt(12))
	assert.Equal(t, controller.StatusReady, h.next().Status)
}

func TestRefreshWithoutPlaceIsNoop(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Refresh()
	h.quiet()
	h.fc.none(t)
}

func TestGeolocationDeniedDiscardsReady(t *testing.T) {
	h := newHarness(t)
	h.ready(seoul, snapshotAt(21))

	h.ctrl.RequestDeviceLocation()
	assert.Equal(t, controller.StatusResolvingLocation, h.next().Status)
	h.loc.next(t).fail(fmt.Errorf("%w: user refused", weather.ErrPermissionDenied))

	st := h.next()
	assert.Equal(t, controller.StatusFailed, st.Status)
	assert.Equal(t, controller.ReasonGeolocation, st.Reason)
	assert.ErrorIs(t, st.Err, weather.ErrPermissionDenied)
	assert.Nil(t, st.Place)
	assert.Nil(t, st.Snapshot)

	h.ctrl.Refresh()
	h.quiet()
}

func TestDeviceLocationLoadsForecast(t *testing.T) {
	h := newHarness(t)

	h.ctrl.RequestDeviceLocation()
	h.next()
	h.loc.next(t).succeed(weather.Position{Latitude: 48.85, Longitude: 2.35})

	st := h.next()
	assert.Equal(t, controller.StatusLoadingWeather, st.Status)
	assert.Equal(t, weather.CurrentLocationName, st.Place.Name)
	assert.Equal(t, "UTC", st.Place.TimeZone)
	assert.Equal(t, "48.8500,2.3500", h.fc.next(t).arg)
	h.loc.none(t)
}

func TestDeviceLocationCancelsSearchAndForecast(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(seoul)
	h.next()
	fc := h.fc.next(t)

	h.ctrl.RequestDeviceLocation()
	h.next()
	assert.True(t, fc.cancelled())
	loc := h.loc.next(t)

	h.ctrl.SubmitSearchText("Bus")
	h.next()
	assert.True(t, loc.cancelled())

	loc.succeed(weather.Position{Latitude: 1, Longitude: 2})
	h.waitSettled("locate", "cancelled", 1)
	h.quiet()
	h.fc.none(t)
}

func TestLocateTimeout(t *testing.T) {
	blocking := weather.LocatorFunc(func(ctx context.Context) (weather.Position, error) {
		<-ctx.Done()
		return weather.Position{}, ctx.Err()
	})
	h := newHarnessWithLocator(t, blocking, controller.WithLocateTimeout(20*time.Millisecond))

	h.ctrl.RequestDeviceLocation()
	h.next()

	st := h.next()
	assert.Equal(t, controller.StatusFailed, st.Status)
	assert.Equal(t, controller.ReasonGeolocation, st.Reason)
	assert.ErrorIs(t, st.Err, weather.ErrTimeout)
}

func TestNilLocatorIsUnsupported(t *testing.T) {
	ctrl := controller.New(
		weather.GeocoderFunc(func(context.Context, string) ([]weather.Place, error) { return nil, nil }),
		weather.ForecasterFunc(func(context.Context, float64, float64) (weather.Snapshot, error) { return weather.Snapshot{}, nil }),
		nil,
	)
	ctrl.Start(context.Background())
	defer ctrl.Close()

	events := ctrl.Subscribe(context.Background())
	<-events

	ctrl.RequestDeviceLocation()
	assert.Equal(t, controller.StatusResolvingLocation, (<-events).State.Status)
	st := (<-events).State
	assert.Equal(t, controller.ReasonGeolocation, st.Reason)
	assert.ErrorIs(t, st.Err, weather.ErrUnsupported)
}

func TestSubmitSearchSelectsFirstResult(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearch("Seoul")
	assert.Equal(t, controller.StatusSearching, h.next().Status)

	// No debounce for an explicit search.
	geo := h.geo.next(t)
	assert.Equal(t, "Seoul", geo.arg)
	geo.succeed([]weather.Place{seoul, busan})

	st := h.next()
	assert.Equal(t, controller.StatusLoadingWeather, st.Status)
	assert.Equal(t, seoul, *st.Place)
}

func TestSubmitSearchUsesResolvedSuggestions(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Bus")
	h.next()
	h.clock.Advance(controller.DefaultDebounce)
	h.geo.next(t).succeed([]weather.Place{busan})
	h.next()

	h.ctrl.SubmitSearch("Bus")
	st := h.next()
	assert.Equal(t, controller.StatusLoadingWeather, st.Status)
	assert.Equal(t, busan, *st.Place)
	h.geo.none(t)
}

func TestSubmitSearchWithNoResultsStaysSearching(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearch("Atlantis")
	h.next()
	h.geo.next(t).succeed(nil)

	st := h.next()
	assert.Equal(t, controller.StatusSearching, st.Status)
	assert.True(t, st.SuggestionsReady)
	assert.NotNil(t, st.Suggestions)
	assert.Empty(t, st.Suggestions)
	h.fc.none(t)
}

func TestSubmitSearchCancelsPendingDebounce(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SubmitSearchText("Seo")
	h.next()
	h.ctrl.SubmitSearch("Seoul")
	h.next()
	assert.Equal(t, "Seoul", h.geo.next(t).arg)

	h.clock.Advance(time.Second)
	h.geo.none(t)
}

func TestZeroDebounceGeocodesImmediately(t *testing.T) {
	h := newHarness(t, controller.WithDebounce(0))

	h.ctrl.SubmitSearchText("Seo")
	h.next()
	assert.Equal(t, "Seo", h.geo.next(t).arg)
}

func TestBootstrapPlaceIsSelectedOnStart(t *testing.T) {
	h := newHarness(t, controller.WithBootstrapPlace(seoul))

	fc := h.fc.next(t)
	assert.Equal(t, "37.5665,126.9780", fc.arg)
	assert.Equal(t, controller.StatusLoadingWeather, h.ctrl.State().Status)

	fc.succeed(snapshotAt(20))
	assert.Equal(t, controller.StatusReady, h.next().Status)
}

func TestEventSequenceIsMonotonic(t *testing.T) {
	h := newHarness(t)
	events := h.ctrl.Subscribe(context.Background())
	first := <-events

	h.ctrl.SubmitSearchText("Seo")
	h.ctrl.SubmitSearchText("")
	h.ctrl.ToggleUnits(weather.Fahrenheit)

	prev := first.Seq
	for i := 0; i < 3; i++ {
		ev := <-events
		assert.Equal(t, prev+1, ev.Seq)
		prev = ev.Seq
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	events := h.ctrl.Subscribe(ctx)
	<-events
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, waitTimeout, 5*time.Millisecond)
}

func TestSlowSubscriberKeepsNewestState(t *testing.T) {
	h := newHarness(t, controller.WithBufferSize(1))
	slow := h.ctrl.Subscribe(context.Background())

	for _, q := range []string{"Se", "Seo", "Seou", "Seoul"} {
		h.ctrl.SubmitSearchText(q)
	}
	h.ctrl.SelectPlace(seoul)
	h.fc.next(t).succeed(snapshotAt(21))
	require.Eventually(t, func() bool {
		return h.ctrl.State().Status == controller.StatusReady
	}, waitTimeout, 5*time.Millisecond)

	require.Len(t, slow, 1)
	ev := <-slow
	assert.Equal(t, controller.StatusReady, ev.State.Status)
	assert.Equal(t, h.ctrl.Latest().Seq, ev.Seq)
}

func TestConcurrentStartRunsOneLoop(t *testing.T) {
	geocoder := weather.GeocoderFunc(func(context.Context, string) ([]weather.Place, error) {
		return []weather.Place{seoul}, nil
	})
	forecaster := weather.ForecasterFunc(func(context.Context, float64, float64) (weather.Snapshot, error) {
		return snapshotAt(20), nil
	})
	ctrl := controller.New(geocoder, forecaster, nil, controller.WithDebounce(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.Start(context.Background())
		}()
	}
	wg.Wait()

	ctrl.SubmitSearch("Seoul")
	require.Eventually(t, func() bool {
		return ctrl.State().Status == controller.StatusReady
	}, waitTimeout, 5*time.Millisecond)

	ctrl.Close()
	select {
	case <-ctrl.Done():
	case <-time.After(waitTimeout):
		t.Fatal("loop did not stop")
	}
}

func TestIntentsAfterCloseAreNoops(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Close()

	_, ok := <-h.events
	assert.False(t, ok)

	h.ctrl.SubmitSearchText("Seoul")
	h.ctrl.SelectPlace(seoul)
	h.ctrl.RequestDeviceLocation()
	assert.Equal(t, controller.StatusIdle, h.ctrl.State().Status)

	late := h.ctrl.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}

func TestCloseCancelsOutstandingOperations(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SelectPlace(seoul)
	h.next()
	op := h.fc.next(t)

	go h.ctrl.Close()
	require.Eventually(t, op.cancelled, waitTimeout, 5*time.Millisecond)
	op.succeed(snapshotAt(1))

	select {
	case <-h.ctrl.Done():
	case <-time.After(waitTimeout):
		t.Fatal("loop did not stop")
	}
}

func TestIntentsBeforeStartAreNoops(t *testing.T) {
	ctrl := controller.New(nil, nil, nil)
	ctrl.SubmitSearchText("Seoul")
	ctrl.Refresh()
	assert.Equal(t, controller.StatusIdle, ctrl.State().Status)
	ctrl.Close()
}

func TestStatusText(t *testing.T) {
	text, err := controller.StatusLoadingWeather.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loading-weather", string(text))
	assert.Equal(t, "status(42)", controller.Status(42).String())
}
