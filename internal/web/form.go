// Package web renders the interactive loan prediction form.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
	"loan-predictor/internal/ml"
)

//go:embed templates/*.html
var templateFS embed.FS

// Predictor is the part of ml.Service the form needs.
type Predictor interface {
	Predict(ctx context.Context, rec features.UserRecord, source string) (*ml.Result, error)
}

type field struct {
	Name     string
	Label    string
	Value    string
	Min      string
	Max      string
	Step     string
	Range    bool
	Optional bool
}

// defaultFields mirrors the inputs, defaults and bounds of the original form.
func defaultFields() []field {
	return []field{
		{Name: "age", Label: "Age", Value: "30", Min: "18", Max: "100", Step: "1"},
		{Name: "cash_incoming_30days", Label: "Cash Incoming in Last 30 Days (KES)", Value: "5000.0", Min: "0", Step: "any"},
		{Name: "gps_fix_count", Label: "Number of App Opens (GPS Fix Count)", Value: "10", Min: "0", Step: "1", Optional: true},
		{Name: "unique_locations_count", Label: "Unique Locations Visited", Value: "5", Min: "0", Step: "1", Optional: true},
		{Name: "avg_time_between_opens", Label: "Average Time Between App Opens (seconds)", Value: "3600.0", Min: "0", Step: "any", Optional: true},
		{Name: "night_usage_ratio", Label: "Nighttime Activity Ratio (0 to 1)", Value: "0.2", Min: "0", Max: "1", Step: "0.01", Range: true, Optional: true},
		{Name: "num_clusters", Label: "Number of Significant Locations (Clusters)", Value: "2", Min: "0", Step: "1", Optional: true},
	}
}

type column struct {
	Name  string
	Value float64
}

type outcome struct {
	Prediction  string
	Probability float64
	Columns     []column
}

type page struct {
	Fields []field
	Result *outcome
	Error  string
}

// FormHandler serves the form on GET and scores the submitted record on POST.
type FormHandler struct {
	svc     Predictor
	tmpl    *template.Template
	timeout time.Duration
}

func NewFormHandler(svc Predictor, timeout time.Duration) (*FormHandler, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if timeout <= 0 {
		timeout = common.DefaultInferenceTimeout
	}
	return &FormHandler{svc: svc, tmpl: tmpl, timeout: timeout}, nil
}

func (h *FormHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, page{Fields: defaultFields()})
	case http.MethodPost:
		h.render(w, h.submit(r))
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// submit never fails the request: errors are shown on the page.
func (h *FormHandler) submit(r *http.Request) page {
	p := page{Fields: defaultFields()}

	if err := r.ParseForm(); err != nil {
		p.Error = fmt.Sprintf("Error making prediction: %v", err)
		return p
	}
	for i := range p.Fields {
		p.Fields[i].Value = r.PostForm.Get(p.Fields[i].Name)
	}

	rec, err := features.ParseValues(r.PostForm)
	if err != nil {
		p.Error = fmt.Sprintf("Error making prediction: %v", err)
		return p
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Predict(ctx, rec, common.SourceForm)
	if err != nil {
		log.Warn().Err(err).Msg("form prediction failed")
		p.Error = fmt.Sprintf("Error making prediction: %v", err)
		return p
	}

	out := &outcome{Prediction: res.Prediction, Probability: res.Probability}
	for i, name := range features.FeatureColumns {
		out.Columns = append(out.Columns, column{Name: name, Value: res.Features[i]})
	}
	p.Result = out
	return p
}

func (h *FormHandler) render(w http.ResponseWriter, p page) {
	// Render to a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "form.html", p); err != nil {
		log.Error().Err(err).Msg("failed to render form")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
