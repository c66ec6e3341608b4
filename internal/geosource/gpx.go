// Package geosource provides trail.SampleSource implementations that do not
// need device hardware.
package geosource

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type gpxDocument struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat    float64   `xml:"lat,attr"`
	Lon    float64   `xml:"lon,attr"`
	Time   time.Time `xml:"time"`
	Course *float64  `xml:"course"`
}

// TrackPoint is one fix read from a GPX track.
type TrackPoint struct {
	Latitude  float64
	Longitude float64
	// Time is zero when the file carries no timestamp.
	Time time.Time
	// Course is the recorded heading in degrees, if present.
	Course *float64
}

// ParseGPX reads every track point of every track and segment, in document
// order.
func ParseGPX(r io.Reader) ([]TrackPoint, error) {
	var doc gpxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing gpx: %w", err)
	}

	var points []TrackPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for i, p := range seg.Points {
				if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
					return nil, fmt.Errorf("gpx track %q point %d: coordinate out of range (%f, %f)", trk.Name, i, p.Lat, p.Lon)
				}
				points = append(points, TrackPoint{
					Latitude:  p.Lat,
					Longitude: p.Lon,
					Time:      p.Time,
					Course:    p.Course,
				})
			}
		}
	}
	return points, nil
}
