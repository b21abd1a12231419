package main

import "vehicle-registration-visualizer/pkg/aggregate"

// Group is the wire form of an aggregate group expected by the frontend.
type Group struct {
	Key    []string `json:"key"`
	Total  int64    `json:"total"`
	Rows   int      `json:"rows"`
	Lat    float64  `json:"lat"`
	Lon    float64  `json:"lon"`
	HasGeo bool     `json:"hasGeo"`
}

type Point struct {
	Key   []string `json:"key"`
	Total int64    `json:"total"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
}

type AggregateResponse struct {
	Dimensions []string            `json:"dimensions"`
	Geo        string              `json:"geo"`
	Total      int64               `json:"total"`
	Dropped    int                 `json:"dropped"`
	Drops      aggregate.DropStats `json:"drops"`
	Groups     []Group             `json:"groups"`
}

type RollupResponse struct {
	Dimension string           `json:"dimension"`
	Totals    aggregate.Totals `json:"totals"`
}

type TopResponse struct {
	Dimension string            `json:"dimension"`
	Order     string            `json:"order"`
	Entries   []aggregate.Entry `json:"entries"`
}

type ZipResponse struct {
	Zip    string  `json:"zip"`
	Total  int64   `json:"total"`
	Groups []Group `json:"groups"`
}

type LocationsResponse struct {
	Dimensions []string `json:"dimensions"`
	Geo        string   `json:"geo"`
	Points     []Point  `json:"points"`
}

type MatrixResponse struct {
	Rows   string           `json:"rows"`
	Cols   string           `json:"cols"`
	Matrix aggregate.Matrix `json:"matrix"`
}

// DatasetMessage is pushed to websocket clients on connect and after every
// reload.
type DatasetMessage struct {
	Type     string            `json:"type"`
	Summary  aggregate.Summary `json:"summary"`
	LoadedAt int64             `json:"loadedAt"`
}

func toGroups(in []aggregate.Group) []Group {
	out := make([]Group, 0, len(in))
	for _, g := range in {
		out = append(out, Group{
			Key:    g.Key.Values(),
			Total:  g.Total,
			Rows:   g.Rows,
			Lat:    g.Lat,
			Lon:    g.Lon,
			HasGeo: g.HasGeo,
		})
	}
	return out
}

func toPoints(in []aggregate.Location) []Point {
	out := make([]Point, 0, len(in))
	for _, l := range in {
		out = append(out, Point{Key: l.Key.Values(), Total: l.Total, Lat: l.Lat, Lon: l.Lon})
	}
	return out
}

func dimensionNames(dims []aggregate.Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.String()
	}
	return out
}
