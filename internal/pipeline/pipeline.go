package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"zone-mapper/internal/calculator"
	"zone-mapper/internal/geocode"
	"zone-mapper/internal/metrics"
	"zone-mapper/internal/models"
	"zone-mapper/internal/report"
	"zone-mapper/internal/tabular"
)

// Output kinds, also used as download names.
const (
	KindJSON = "json"
	KindCSV  = "csv"
	KindXLSX = "xlsx"
	KindKML  = "kml"
)

const exportBase = "familles_zones"

var ErrMissingOwnerAddress = errors.New("pipeline: owner address is required")

type Owner struct {
	Name    string
	Address string
}

// Request describes one run: an input registry, the two owners in zone
// order and the directory receiving the outputs.
type Request struct {
	InputPath string
	OutputDir string
	Owners    [2]Owner
}

type Output struct {
	Result   calculator.Result
	Files    map[string]string
	Families int
	Geocoded int
}

// Pipeline loads a registry, geocodes it, assigns zones and writes reports.
type Pipeline struct {
	batch   *geocode.Batch
	loader  tabular.LoaderOptions
	metrics *metrics.Collector
}

func New(batch *geocode.Batch, loader tabular.LoaderOptions, m *metrics.Collector) *Pipeline {
	return &Pipeline{batch: batch, loader: loader, metrics: m}
}

func (r Request) validate() (Request, error) {
	for i := range r.Owners {
		o := &r.Owners[i]
		o.Name = strings.TrimSpace(o.Name)
		o.Address = strings.TrimSpace(o.Address)
		if o.Name == "" {
			o.Name = fmt.Sprintf("Ilotier %d", i+1)
		}
		if o.Address == "" {
			return r, fmt.Errorf("%w: %s", ErrMissingOwnerAddress, o.Name)
		}
	}
	if r.Owners[0].Name == r.Owners[1].Name {
		return r, fmt.Errorf("pipeline: owners must have distinct names, got %q twice", r.Owners[0].Name)
	}
	if r.InputPath == "" {
		return r, errors.New("pipeline: input file is required")
	}
	if r.OutputDir == "" {
		r.OutputDir = filepath.Dir(r.InputPath)
	}
	return r, nil
}

// Run executes the whole chain. Progress covers the geocoding of families,
// which is the only slow stage.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress calculator.ProgressCallback, logger calculator.LoggerCallback) (out *Output, err error) {
	start := time.Now()
	defer func() {
		status := "done"
		if err != nil {
			status = "error"
		}
		p.metrics.Run(status, time.Since(start).Seconds())
	}()

	if logger == nil {
		logger = func(string) {}
	}

	req, err = req.validate()
	if err != nil {
		return nil, err
	}

	logger(fmt.Sprintf("Reading %s", filepath.Base(req.InputPath)))
	table, err := tabular.Load(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to load input: %w", err)
	}
	families, err := tabular.Families(table, p.loader)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to read families: %w", err)
	}
	logger(fmt.Sprintf("%d families loaded", len(families)))

	logger("Geocoding owners...")
	var owners [2]models.ReferencePoint
	for i, o := range req.Owners {
		loc, err := p.batch.Geocode(ctx, o.Address)
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to geocode %s: %w", o.Name, err)
		}
		owners[i] = models.ReferencePoint{Name: o.Name, Address: o.Address, Loc: loc, Zone: i + 1}
		logger(fmt.Sprintf("  %s : %.6f, %.6f", o.Name, loc.Lat, loc.Lng))
	}

	geocoded, err := p.batch.Families(ctx, families, geocode.ProgressCallback(onProgress), geocode.LoggerCallback(logger))
	if err != nil {
		return nil, fmt.Errorf("pipeline: geocoding interrupted: %w", err)
	}

	logger("Applying the balancing algorithm...")
	res := calculator.Assign(families, owners, nil, logger)
	for _, w := range res.Warnings {
		log.Warn().Err(w).Msg("assignment warning")
	}
	s := res.Summary
	p.metrics.Assignment(s.Zone1, s.Zone2, s.Ungeocoded, s.Transferred)

	files, err := writeOutputs(req, table, res, p.loader.IDColumn)
	if err != nil {
		return nil, err
	}
	for _, kind := range []string{KindJSON, KindCSV, KindXLSX, KindKML} {
		if path, ok := files[kind]; ok {
			logger(fmt.Sprintf("Saved %s", filepath.Base(path)))
		}
	}

	log.Info().
		Str("input", filepath.Base(req.InputPath)).
		Int("families", len(families)).
		Int("geocoded", geocoded).
		Int("zone1", s.Zone1).
		Int("zone2", s.Zone2).
		Int("transferred", s.Transferred).
		Dur("elapsed", time.Since(start)).
		Msg("assignment run finished")

	return &Output{Result: res, Files: files, Families: len(families), Geocoded: geocoded}, nil
}

func writeOutputs(req Request, table *tabular.Table, res calculator.Result, idColumn string) (map[string]string, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: failed to create output dir: %w", err)
	}

	files := map[string]string{
		KindJSON: filepath.Join(req.OutputDir, report.JSONFile),
		KindCSV:  filepath.Join(req.OutputDir, exportBase+".csv"),
		KindKML:  filepath.Join(req.OutputDir, report.KMLFile),
	}
	if table.Format == tabular.FormatXLSX {
		files[KindXLSX] = filepath.Join(req.OutputDir, exportBase+".xlsx")
	}

	if err := report.WriteJSON(files[KindJSON], res); err != nil {
		return nil, err
	}
	if err := tabular.WriteAugmented(files[KindCSV], table, res.Families, idColumn); err != nil {
		return nil, fmt.Errorf("pipeline: failed to write csv export: %w", err)
	}
	if path, ok := files[KindXLSX]; ok {
		if err := tabular.WriteAugmented(path, table, res.Families, idColumn); err != nil {
			return nil, fmt.Errorf("pipeline: failed to write xlsx export: %w", err)
		}
	}
	if err := report.WriteKML(files[KindKML], res); err != nil {
		return nil, err
	}
	return files, nil
}
