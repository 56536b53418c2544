// Package viz renders analytic results to chart files.
package viz

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
)

// Supported chart types.
const (
	ChartBar           = "bar"
	ChartHorizontalBar = "horizontal_bar"
	ChartLine          = "line"
	ChartPie           = "pie"
	ChartScatter       = "scatter"
)

// Point is one labeled value of a chart series.
type Point struct {
	Name  string
	Value float64
}

// Renderer writes charts as standalone HTML files under a fixed directory.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer writing into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Render draws the points as the requested chart type and writes the file.
// File names embed a timestamp and a random suffix so concurrent renders in
// one batch never collide. Returns the file path.
func (r *Renderer) Render(chartType, dataSource, title string, points []Point) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("no data points to plot")
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.html",
		dataSource,
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
	)
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	switch chartType {
	case ChartBar, ChartHorizontalBar:
		err = renderBar(f, title, points, chartType == ChartHorizontalBar)
	case ChartLine:
		err = renderLine(f, title, points)
	case ChartPie:
		err = renderPie(f, title, points)
	case ChartScatter:
		err = renderScatter(f, title, points)
	default:
		err = fmt.Errorf("unknown chart type: %s", chartType)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

func names(points []Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Name
	}
	return out
}

func renderBar(f *os.File, title string, points []Point, horizontal bool) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	data := make([]opts.BarData, len(points))
	for i, p := range points {
		data[i] = opts.BarData{Value: p.Value}
	}
	bar.SetXAxis(names(points)).AddSeries("count", data)
	if horizontal {
		bar.XYReversal()
	}
	return bar.Render(f)
}

func renderLine(f *os.File, title string, points []Point) error {
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	data := make([]opts.LineData, len(points))
	for i, p := range points {
		data[i] = opts.LineData{Value: p.Value}
	}
	line.SetXAxis(names(points)).AddSeries("count", data)
	return line.Render(f)
}

func renderPie(f *os.File, title string, points []Point) error {
	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	data := make([]opts.PieData, len(points))
	for i, p := range points {
		data[i] = opts.PieData{Name: p.Name, Value: p.Value}
	}
	pie.AddSeries("count", data)
	return pie.Render(f)
}

func renderScatter(f *os.File, title string, points []Point) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	data := make([]opts.ScatterData, len(points))
	for i, p := range points {
		data[i] = opts.ScatterData{Value: p.Value}
	}
	scatter.SetXAxis(names(points)).AddSeries("count", data)
	return scatter.Render(f)
}
