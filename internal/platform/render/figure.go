package render

import (
	"time"

	"github.com/ehr/explorer/internal/table"
)

// Figure is a chart in the Plotly figure JSON shape. Any Plotly front end can
// draw it unchanged.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type          string        `json:"type"`
	Name          string        `json:"name,omitempty"`
	Orientation   string        `json:"orientation,omitempty"`
	Mode          string        `json:"mode,omitempty"`
	HistFunc      string        `json:"histfunc,omitempty"`
	X             []interface{} `json:"x"`
	Y             []interface{} `json:"y"`
	Base          []interface{} `json:"base,omitempty"`
	Text          []string      `json:"text,omitempty"`
	CustomData    []interface{} `json:"customdata,omitempty"`
	HoverTemplate string        `json:"hovertemplate,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title *Title `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}

type Legend struct {
	Title *Title `json:"title,omitempty"`
}

type Layout struct {
	Title   *Title  `json:"title,omitempty"`
	XAxis   Axis    `json:"xaxis"`
	YAxis   Axis    `json:"yaxis"`
	Legend  *Legend `json:"legend,omitempty"`
	BarMode string  `json:"barmode,omitempty"`
	Height  int     `json:"height,omitempty"`
	Width   int     `json:"width,omitempty"`
}

// Labels are the human readable strings of a chart.
type Labels struct {
	Title  string
	X      string
	Y      string
	Legend string
}

func title(s string) *Title {
	if s == "" {
		return nil
	}
	return &Title{Text: s}
}

func (l Labels) layout() Layout {
	out := Layout{
		Title: title(l.Title),
		XAxis: Axis{Title: title(l.X)},
		YAxis: Axis{Title: title(l.Y)},
	}
	if l.Legend != "" {
		out.Legend = &Legend{Title: title(l.Legend)}
	}
	return out
}

func column(t *table.Table, col string) []interface{} {
	vals := t.Column(col)
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out
}

// Histogram draws one horizontal bar per category with the summed value,
// the shape of a histogram over a pre-aggregated count column.
func Histogram(t *table.Table, categoryCol, valueCol string, l Labels) Figure {
	return Figure{
		Data: []Trace{{
			Type:        "histogram",
			Orientation: "h",
			HistFunc:    "sum",
			X:           column(t, valueCol),
			Y:           column(t, categoryCol),
		}},
		Layout: l.layout(),
	}
}

// HorizontalBars draws one bar trace per group, in the order of groups. The
// hover label shows countCol next to the bar value.
func HorizontalBars(t *table.Table, groupCol, categoryCol, valueCol, countCol string, groups []string, l Labels) Figure {
	fig := Figure{Layout: l.layout()}
	for _, g := range groups {
		sub := t.Where(groupCol, table.Text(g))
		tr := Trace{
			Type:        "bar",
			Name:        g,
			Orientation: "h",
			X:           column(sub, valueCol),
			Y:           column(sub, categoryCol),
		}
		if countCol != "" {
			tr.CustomData = column(sub, countCol)
			tr.HoverTemplate = " Value: %{x}<br>Count : %{customdata}"
		}
		fig.Data = append(fig.Data, tr)
	}
	return fig
}

// Lines draws one line per distinct value of seriesCol, in first-appearance
// order. Missing y values become gaps.
func Lines(t *table.Table, seriesCol, xCol, yCol string, l Labels) Figure {
	fig := Figure{Layout: l.layout()}
	for _, s := range t.Distinct(seriesCol) {
		sub := t.Where(seriesCol, s)
		fig.Data = append(fig.Data, Trace{
			Type: "scatter",
			Mode: "lines+markers",
			Name: s.String(),
			X:    column(sub, xCol),
			Y:    column(sub, yCol),
		})
	}
	return fig
}

// Timeline draws a Gantt chart: one horizontal bar per row from startCol to
// stopCol, labelled with statusCol.
func Timeline(t *table.Table, labelCol, startCol, stopCol, statusCol string, l Labels) Figure {
	tr := Trace{
		Type:          "bar",
		Orientation:   "h",
		HoverTemplate: "%{y}<br>%{base|%Y-%m-%d} to %{x|%Y-%m-%d} %{text}",
	}
	for _, r := range t.Rows {
		start, ok := r.Get(startCol).TimeValue()
		if !ok {
			continue
		}
		stop, ok := r.Get(stopCol).TimeValue()
		if !ok || stop.Before(start) {
			continue
		}
		tr.Y = append(tr.Y, r.Get(labelCol).Interface())
		tr.Base = append(tr.Base, start.Format(time.RFC3339))
		tr.X = append(tr.X, stop.Sub(start).Milliseconds())
		tr.Text = append(tr.Text, r.Get(statusCol).String())
	}
	layout := l.layout()
	layout.XAxis.Type = "date"
	return Figure{Data: []Trace{tr}, Layout: layout}
}

func Scatter(t *table.Table, xCol, yCol string, l Labels) Figure {
	return Figure{
		Data: []Trace{{
			Type: "scatter",
			Mode: "markers",
			X:    column(t, xCol),
			Y:    column(t, yCol),
		}},
		Layout: l.layout(),
	}
}
