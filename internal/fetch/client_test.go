package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dvf-dashboard/internal/filter"
)

const minimalHeatmap = `{"summary":{"level":"national","total_sales":0,"entity_count":0,"max_sales":0},"points":[]}`

func TestClientHeatmapPassesSelection(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(minimalHeatmap))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	sel := filter.Selection{Department: "75", Commune: "75056"}
	if _, err := c.Heatmap(context.Background(), sel); err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if gotQuery != "commune=75056&department=75" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	_, err := c.Heatmap(context.Background(), filter.Selection{})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("want ErrStatus, got %v", err)
	}
}

func TestClientChartsClampsTopLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("top_limit")
		_, _ = w.Write([]byte(`{"selection":{"level":"national"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	cases := []struct {
		in   int
		want string
	}{
		{0, "10"},
		{1, "3"},
		{100, "20"},
		{12, "12"},
	}
	for _, tc := range cases {
		if _, err := c.Charts(context.Background(), filter.Selection{}, tc.in); err != nil {
			t.Fatalf("charts(%d): %v", tc.in, err)
		}
		if gotLimit != tc.want {
			t.Errorf("top_limit for %d = %q, want %q", tc.in, gotLimit, tc.want)
		}
	}
}

func TestClientCommuneOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("department") != "2A" {
			t.Errorf("department param = %q", r.URL.Query().Get("department"))
		}
		_, _ = w.Write([]byte(`{"communes":[{"code_commune":"2A004","name":"Ajaccio"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	p, err := c.CommuneOptions(context.Background(), "2A")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(p.Communes) != 1 || p.Communes[0].Name != "Ajaccio" {
		t.Fatalf("options mismatch: %+v", p.Communes)
	}
}
