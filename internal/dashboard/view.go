package dashboard

import (
	"fmt"
	"slices"
	"strings"

	"sensordash/internal/data"
	"sensordash/internal/session"
	"sensordash/internal/types"
)

const (
	chartWidth  = 720
	chartHeight = 260
	chartPad    = 10
)

type seriesView struct {
	types.Series
	Selected bool
}

type measurementView struct {
	types.Measurement
	SeriesName string
	Unit       string
	When       string
}

type chartLine struct {
	Color  string
	Points string
	Name   string
}

type pageView struct {
	Username    string
	IsAdmin     bool
	SignedIn    bool
	Series      []seriesView
	Rows        []measurementView
	DateRange   types.DateRange
	Loading     bool
	ChartLines  []chartLine
	ChartWidth  int
	ChartHeight int
}

func buildView(sessions *session.Store, snap data.Snapshot) pageView {
	vm := pageView{
		SignedIn:    sessions.IsAuthenticated(),
		IsAdmin:     sessions.IsAdmin(),
		DateRange:   snap.DateRange,
		Loading:     snap.Loading,
		ChartWidth:  chartWidth,
		ChartHeight: chartHeight,
	}
	if u := sessions.User(); u != nil {
		vm.Username = u.Username
	}

	byID := map[int]types.Series{}
	for _, sr := range snap.Series {
		byID[sr.ID] = sr
		vm.Series = append(vm.Series, seriesView{
			Series:   sr,
			Selected: slices.Contains(snap.SelectedSeriesIDs, sr.ID),
		})
	}

	for _, m := range snap.Measurements {
		row := measurementView{
			Measurement: m,
			SeriesName:  fmt.Sprintf("series %d", m.SeriesID),
			When:        m.Timestamp.Format("2006-01-02 15:04:05"),
		}
		if sr, ok := byID[m.SeriesID]; ok {
			row.SeriesName = sr.Name
			row.Unit = sr.Unit
		}
		vm.Rows = append(vm.Rows, row)
	}

	vm.ChartLines = buildChartLines(snap, byID)
	return vm
}

// buildChartLines renders one polyline per selected series. Points are
// ordered oldest to newest on x and scaled to the series' min/max on y.
func buildChartLines(snap data.Snapshot, byID map[int]types.Series) []chartLine {
	grouped := map[int][]types.Measurement{}
	for _, m := range snap.Measurements {
		if !slices.Contains(snap.SelectedSeriesIDs, m.SeriesID) {
			continue
		}
		grouped[m.SeriesID] = append(grouped[m.SeriesID], m)
	}

	var lines []chartLine
	for _, id := range snap.SelectedSeriesIDs {
		ms := grouped[id]
		if len(ms) == 0 {
			continue
		}
		slices.SortFunc(ms, func(a, b types.Measurement) int {
			return a.Timestamp.Compare(b.Timestamp)
		})

		sr, ok := byID[id]
		lo, hi := sr.MinValue, sr.MaxValue
		if !ok || hi <= lo {
			lo, hi = valueBounds(ms)
		}

		var b strings.Builder
		for i, m := range ms {
			x := float64(chartPad)
			if len(ms) > 1 {
				x += float64(i) / float64(len(ms)-1) * float64(chartWidth-2*chartPad)
			}
			frac := 0.5
			if hi > lo {
				frac = (m.Value - lo) / (hi - lo)
			}
			frac = min(max(frac, 0), 1)
			y := float64(chartHeight-chartPad) - frac*float64(chartHeight-2*chartPad)
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.1f,%.1f", x, y)
		}

		color := sr.Color
		if color == "" {
			color = "#3B82F6"
		}
		lines = append(lines, chartLine{Color: color, Points: b.String(), Name: sr.Name})
	}
	return lines
}

func valueBounds(ms []types.Measurement) (lo, hi float64) {
	lo, hi = ms[0].Value, ms[0].Value
	for _, m := range ms[1:] {
		lo = min(lo, m.Value)
		hi = max(hi, m.Value)
	}
	return lo, hi
}
