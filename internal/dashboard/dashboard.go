// Package dashboard renders CloudWatch dashboard bodies for the platform's functions.
package dashboard

import (
	"encoding/json"
	"fmt"
)

// Name is the dashboard name.
const Name = "LambdaActivityDashboard"

const (
	widgetWidth  = 12
	widgetHeight = 6
	periodSecs   = 60
)

// Function is one function shown on the dashboard.
type Function struct {
	// Label is the human readable name used in widget titles.
	Label string
	// Name is the deployed function name, the FunctionName metric dimension.
	Name string
}

// Body is the dashboard body document.
type Body struct {
	Widgets []Widget `json:"widgets"`
}

// Widget is a metric graph widget.
type Widget struct {
	Type       string           `json:"type"`
	X          int              `json:"x"`
	Y          int              `json:"y"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties WidgetProperties `json:"properties"`
}

// WidgetProperties holds the metric graph settings.
type WidgetProperties struct {
	Title   string  `json:"title"`
	View    string  `json:"view"`
	Region  string  `json:"region"`
	Stat    string  `json:"stat"`
	Period  int     `json:"period"`
	Stacked bool    `json:"stacked"`
	Metrics [][]any `json:"metrics"`
}

// Build lays out an Invocations graph and an Errors graph per function, one
// row per function in the given order.
func Build(region string, functions []Function) Body {
	body := Body{Widgets: make([]Widget, 0, 2*len(functions))}
	for i, fn := range functions {
		y := i * widgetHeight
		body.Widgets = append(body.Widgets,
			graph(region, fmt.Sprintf("%s Invocations", fn.Label), "Invocations", fn.Name, 0, y),
			graph(region, fmt.Sprintf("%s Invocation Errors", fn.Label), "Errors", fn.Name, widgetWidth, y),
		)
	}
	return body
}

// JSON renders the body.
func (b Body) JSON() (string, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dashboard body: %w", err)
	}
	return string(out), nil
}

func graph(region, title, metric, functionName string, x, y int) Widget {
	return Widget{
		Type:   "metric",
		X:      x,
		Y:      y,
		Width:  widgetWidth,
		Height: widgetHeight,
		Properties: WidgetProperties{
			Title:  title,
			View:   "timeSeries",
			Region: region,
			Stat:   "Sum",
			Period: periodSecs,
			Metrics: [][]any{
				{"AWS/Lambda", metric, "FunctionName", functionName},
			},
		},
	}
}
