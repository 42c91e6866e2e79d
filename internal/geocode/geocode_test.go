package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"zone-mapper/internal/metrics"
	"zone-mapper/internal/models"
)

// MockGeocoder is a mock implementation of the Geocoder interface
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.Coordinate), args.Error(1)
}

// MockCache is a mock implementation of the Cache interface
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Lookup(ctx context.Context, address string) (models.Coordinate, bool, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.Coordinate), args.Bool(1), args.Error(2)
}

func (m *MockCache) Store(ctx context.Context, address string, loc models.Coordinate) error {
	args := m.Called(ctx, address, loc)
	return args.Error(0)
}

func newTestBatch(g Geocoder, maxRetries int) *Batch {
	b := NewBatch(g, 0, maxRetries)
	b.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return b
}

func TestBatch_Geocode(t *testing.T) {
	paris := models.Coordinate{Lat: 48.8566, Lng: 2.3522}
	transient := errors.New("connection reset")

	tests := []struct {
		name        string
		responses   []error
		expectCalls int
		expectErr   error
	}{
		{name: "first try", responses: []error{nil}, expectCalls: 1},
		{name: "retried then ok", responses: []error{transient, transient, nil}, expectCalls: 3},
		{name: "retries exhausted", responses: []error{transient, transient, transient, transient}, expectCalls: 4, expectErr: transient},
		{name: "not found is not retried", responses: []error{ErrNotFound}, expectCalls: 1, expectErr: ErrNotFound},
		{name: "rejected is not retried", responses: []error{fmt.Errorf("%w: bad key", ErrRejected)}, expectCalls: 1, expectErr: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := new(MockGeocoder)
			for _, resp := range tt.responses {
				if resp == nil {
					g.On("Geocode", mock.Anything, "Paris").Return(paris, nil).Once()
				} else {
					g.On("Geocode", mock.Anything, "Paris").Return(models.Coordinate{}, resp).Once()
				}
			}

			loc, err := newTestBatch(g, 3).Geocode(context.Background(), "Paris")

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, paris, loc)
			}
			g.AssertNumberOfCalls(t, "Geocode", tt.expectCalls)
		})
	}
}

func TestBatch_Families(t *testing.T) {
	known := &models.Coordinate{Lat: 1, Lng: 1}
	families := []models.Family{
		{ID: "a", Address: "1 rue A"},
		{ID: "b", Address: "2 rue B"},
		{ID: "c", Address: "3 rue C", Loc: known},
		{ID: "d", Address: "nowhere"},
	}

	g := new(MockGeocoder)
	g.On("Geocode", mock.Anything, "1 rue A").Return(models.Coordinate{Lat: 10, Lng: 10}, nil)
	g.On("Geocode", mock.Anything, "2 rue B").Return(models.Coordinate{}, errors.New("boom"))
	g.On("Geocode", mock.Anything, "nowhere").Return(models.Coordinate{}, ErrNotFound)

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	var logs []string
	var last [2]int
	resolved, err := newTestBatch(g, 0).WithMetrics(collector).Families(context.Background(), families,
		func(current, total int, _ string) { last = [2]int{current, total} },
		func(msg string) { logs = append(logs, msg) },
	)

	require.NoError(t, err)
	assert.Equal(t, 2, resolved)
	assert.Equal(t, [2]int{4, 4}, last)

	require.NotNil(t, families[0].Loc)
	assert.Equal(t, models.Coordinate{Lat: 10, Lng: 10}, *families[0].Loc)
	assert.Nil(t, families[1].Loc)
	assert.Same(t, known, families[2].Loc)
	assert.Nil(t, families[3].Loc)

	assert.Contains(t, logs, "  Could not geocode d")
	assert.Contains(t, logs, "  Error for b: boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Geocodes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Geocodes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Geocodes.WithLabelValues("not_found")))
	g.AssertNotCalled(t, "Geocode", mock.Anything, "3 rue C")
}

func TestBatch_FamiliesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	families := []models.Family{{ID: "a", Address: "A"}, {ID: "b", Address: "B"}}

	g := new(MockGeocoder)
	g.On("Geocode", mock.Anything, "A").Run(func(mock.Arguments) { cancel() }).
		Return(models.Coordinate{}, context.Canceled)

	_, err := newTestBatch(g, 3).Families(ctx, families, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	g.AssertNumberOfCalls(t, "Geocode", 1)
}

func TestBatch_Paces(t *testing.T) {
	g := new(MockGeocoder)
	g.On("Geocode", mock.Anything, mock.Anything).Return(models.Coordinate{}, nil)

	b := NewBatch(g, 30*time.Millisecond, 0)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := b.Geocode(context.Background(), "x")
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestBatch_Cache(t *testing.T) {
	lyon := models.Coordinate{Lat: 45.764, Lng: 4.8357}

	t.Run("hit", func(t *testing.T) {
		g, c := new(MockGeocoder), new(MockCache)
		c.On("Lookup", mock.Anything, "Lyon").Return(lyon, true, nil)

		loc, err := newTestBatch(g, 0).WithCache(c).Geocode(context.Background(), "Lyon")

		require.NoError(t, err)
		assert.Equal(t, lyon, loc)
		g.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	})

	t.Run("hits are not paced", func(t *testing.T) {
		g, c := new(MockGeocoder), new(MockCache)
		c.On("Lookup", mock.Anything, "Lyon").Return(lyon, true, nil)

		b := NewBatch(g, time.Hour, 0).WithCache(c)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := 0; i < 5; i++ {
			_, err := b.Geocode(ctx, "Lyon")
			require.NoError(t, err)
		}
		c.AssertNumberOfCalls(t, "Lookup", 5)
	})

	t.Run("miss stores result", func(t *testing.T) {
		g, c := new(MockGeocoder), new(MockCache)
		c.On("Lookup", mock.Anything, "Lyon").Return(models.Coordinate{}, false, nil)
		g.On("Geocode", mock.Anything, "Lyon").Return(lyon, nil)
		c.On("Store", mock.Anything, "Lyon", lyon).Return(nil)

		loc, err := newTestBatch(g, 0).WithCache(c).Geocode(context.Background(), "Lyon")

		require.NoError(t, err)
		assert.Equal(t, lyon, loc)
		c.AssertExpectations(t)
	})

	t.Run("cache failures are ignored", func(t *testing.T) {
		g, c := new(MockGeocoder), new(MockCache)
		c.On("Lookup", mock.Anything, "Lyon").Return(models.Coordinate{}, false, assert.AnError)
		g.On("Geocode", mock.Anything, "Lyon").Return(lyon, nil)
		c.On("Store", mock.Anything, "Lyon", lyon).Return(assert.AnError)

		loc, err := newTestBatch(g, 0).WithCache(c).Geocode(context.Background(), "Lyon")

		require.NoError(t, err)
		assert.Equal(t, lyon, loc)
	})

	t.Run("provider errors are not cached", func(t *testing.T) {
		g, c := new(MockGeocoder), new(MockCache)
		c.On("Lookup", mock.Anything, "Lyon").Return(models.Coordinate{}, false, nil)
		g.On("Geocode", mock.Anything, "Lyon").Return(models.Coordinate{}, ErrNotFound)

		_, err := newTestBatch(g, 0).WithCache(c).Geocode(context.Background(), "Lyon")

		assert.ErrorIs(t, err, ErrNotFound)
		c.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})
}

func googleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogle_Geocode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		expected  models.Coordinate
		expectErr error
	}{
		{
			name:     "first result wins",
			body:     `{"status":"OK","results":[{"geometry":{"location":{"lat":48.8584,"lng":2.2945}}},{"geometry":{"location":{"lat":1,"lng":1}}}]}`,
			expected: models.Coordinate{Lat: 48.8584, Lng: 2.2945},
		},
		{
			name:      "no result",
			body:      `{"status":"ZERO_RESULTS","results":[]}`,
			expectErr: ErrNotFound,
		},
		{
			name:      "denied",
			body:      `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`,
			expectErr: ErrRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := googleServer(t, tt.body)
			g, err := NewGoogle("test-key", "fr", maps.WithBaseURL(srv.URL))
			require.NoError(t, err)

			loc, err := g.Geocode(context.Background(), "Champ de Mars, Paris")

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loc)
		})
	}
}

func TestGoogle_EmptyAddress(t *testing.T) {
	g, err := NewGoogle("test-key", "")
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewGoogle_MissingKey(t *testing.T) {
	_, err := NewGoogle("", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
