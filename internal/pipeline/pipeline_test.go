package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zone-mapper/internal/geocode"
	"zone-mapper/internal/models"
	"zone-mapper/internal/report"
	"zone-mapper/internal/tabular"
)

// MockGeocoder is a mock implementation of the geocode.Geocoder interface
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.Coordinate), args.Error(1)
}

const registry = "Famille,Adresse postale,Ville de residence,Personne lien (O/N)\n" +
	"1,west 1,Town,O\n" +
	"2,west 2,Town,O\n" +
	"3,west 3,Town,O\n" +
	"4,west 4,Town,O\n" +
	"5,east 1,Town,O\n" +
	"6,unknown,Town,O\n"

func newMock() *MockGeocoder {
	g := new(MockGeocoder)
	g.On("Geocode", mock.Anything, "Owner A street").Return(models.Coordinate{Lng: -1}, nil)
	g.On("Geocode", mock.Anything, "Owner B street").Return(models.Coordinate{Lng: 1}, nil)
	g.On("Geocode", mock.Anything, "west 1, Town").Return(models.Coordinate{Lng: -0.9}, nil)
	g.On("Geocode", mock.Anything, "west 2, Town").Return(models.Coordinate{Lng: -0.6}, nil)
	g.On("Geocode", mock.Anything, "west 3, Town").Return(models.Coordinate{Lng: -0.1}, nil)
	g.On("Geocode", mock.Anything, "west 4, Town").Return(models.Coordinate{Lng: -0.3}, nil)
	g.On("Geocode", mock.Anything, "east 1, Town").Return(models.Coordinate{Lng: 0.5}, nil)
	g.On("Geocode", mock.Anything, "unknown, Town").Return(models.Coordinate{}, geocode.ErrNotFound)
	return g
}

func request(t *testing.T, name, content string) Request {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))
	return Request{
		InputPath: input,
		OutputDir: filepath.Join(dir, "out"),
		Owners:    [2]Owner{{Name: "Alice", Address: "Owner A street"}, {Name: "Bob", Address: "Owner B street"}},
	}
}

func TestPipeline_Run(t *testing.T) {
	g := newMock()
	p := New(geocode.NewBatch(g, 0, 0), tabular.LoaderOptions{}, nil)
	req := request(t, "familles.csv", registry)

	var logs []string
	out, err := p.Run(context.Background(), req, nil, func(msg string) { logs = append(logs, msg) })
	require.NoError(t, err)

	assert.Equal(t, 6, out.Families)
	assert.Equal(t, 5, out.Geocoded)

	s := out.Result.Summary
	assert.Equal(t, 4, s.NaturalZone1)
	assert.Equal(t, 1, s.NaturalZone2)
	assert.Equal(t, 1, s.Transferred)
	assert.Equal(t, 3, s.Zone1)
	assert.Equal(t, 2, s.Zone2)

	// west 3 is the closest to the middle and moves to Bob
	moved := out.Result.Families[2]
	assert.Equal(t, "3", moved.ID)
	assert.Equal(t, "Bob", moved.Owner)

	assert.Equal(t, "Alice", out.Result.Owners[0].Name)
	assert.Equal(t, models.Coordinate{Lng: 1}, out.Result.Owners[1].Loc)

	require.Len(t, out.Files, 3)
	for _, kind := range []string{KindJSON, KindCSV, KindKML} {
		assert.FileExists(t, out.Files[kind])
	}
	assert.NotContains(t, out.Files, KindXLSX)

	doc, err := report.ReadJSON(out.Files[KindJSON])
	require.NoError(t, err)
	assert.Len(t, doc.Families, 6)

	export, err := tabular.Load(out.Files[KindCSV])
	require.NoError(t, err)
	require.Len(t, export.Rows, 6)
	last := export.Rows[5]
	assert.Equal(t, []string{"", "", "", ""}, last[len(last)-4:])

	assert.Contains(t, logs, "6 families loaded")
	assert.Contains(t, logs, "  Could not geocode 6")
	assert.Contains(t, logs, "Saved zones.kml")
}

func TestPipeline_OutputDirDefaultsToInputDir(t *testing.T) {
	p := New(geocode.NewBatch(newMock(), 0, 0), tabular.LoaderOptions{}, nil)
	req := request(t, "familles.csv", registry)
	req.OutputDir = ""

	out, err := p.Run(context.Background(), req, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(req.InputPath), "zones.json"), out.Files[KindJSON])
}

func TestPipeline_Validation(t *testing.T) {
	p := New(geocode.NewBatch(new(MockGeocoder), 0, 0), tabular.LoaderOptions{}, nil)

	t.Run("missing owner address", func(t *testing.T) {
		req := request(t, "familles.csv", registry)
		req.Owners[1].Address = " "

		_, err := p.Run(context.Background(), req, nil, nil)
		assert.ErrorIs(t, err, ErrMissingOwnerAddress)
	})

	t.Run("same owner names", func(t *testing.T) {
		req := request(t, "familles.csv", registry)
		req.Owners[0].Name, req.Owners[1].Name = "", "Ilotier 1"

		_, err := p.Run(context.Background(), req, nil, nil)
		assert.ErrorContains(t, err, "distinct names")
	})

	t.Run("unsupported input", func(t *testing.T) {
		req := request(t, "familles.txt", registry)

		_, err := p.Run(context.Background(), req, nil, nil)
		assert.ErrorIs(t, err, tabular.ErrUnsupportedFormat)
	})
}

func TestPipeline_OwnerNotFound(t *testing.T) {
	g := new(MockGeocoder)
	g.On("Geocode", mock.Anything, "Owner A street").Return(models.Coordinate{}, geocode.ErrNotFound)
	p := New(geocode.NewBatch(g, 0, 0), tabular.LoaderOptions{}, nil)

	_, err := p.Run(context.Background(), request(t, "familles.csv", registry), nil, nil)

	assert.ErrorIs(t, err, geocode.ErrNotFound)
	assert.ErrorContains(t, err, "Alice")
}
