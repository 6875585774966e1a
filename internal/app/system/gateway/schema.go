package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// countryPayload is one element of the country source's array response.
type countryPayload struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	CCA2 string `json:"cca2"`
	CCA3 string `json:"cca3"`
}

// historicalPayload is the historical source's response for one country.
type historicalPayload struct {
	Country  string           `json:"country"`
	Timeline *timelinePayload `json:"timeline"`
}

type timelinePayload struct {
	Cases     map[string]json.Number `json:"cases"`
	Deaths    map[string]json.Number `json:"deaths"`
	Recovered map[string]json.Number `json:"recovered"`
}

// errorPayload is the body some upstreams send with a non-2xx status.
type errorPayload struct {
	Message string `json:"message"`
}

// toCountries converts decoded records to models, dropping records with
// no usable name or alpha-2 code. Names are stripped of markup.
func toCountries(in []countryPayload) []models.Country {
	out := make([]models.Country, 0, len(in))
	for _, p := range in {
		name := htmlsanitize.Text(p.Name.Common)
		code2 := strings.ToUpper(strings.TrimSpace(p.CCA2))
		if name == "" || code2 == "" {
			continue
		}
		out = append(out, models.Country{
			CommonName: name,
			Code2:      code2,
			Code3:      strings.ToUpper(strings.TrimSpace(p.CCA3)),
		})
	}
	return out
}

func (p *historicalPayload) toTimeline() (*models.CumulativeTimeline, error) {
	if p.Timeline == nil {
		return nil, errors.New(`missing "timeline" object`)
	}
	cases, err := toSeries(models.MetricCases, p.Timeline.Cases)
	if err != nil {
		return nil, err
	}
	deaths, err := toSeries(models.MetricDeaths, p.Timeline.Deaths)
	if err != nil {
		return nil, err
	}
	recovered, err := toSeries(models.MetricRecovered, p.Timeline.Recovered)
	if err != nil {
		return nil, err
	}
	return &models.CumulativeTimeline{Cases: cases, Deaths: deaths, Recovered: recovered}, nil
}

func toSeries(m models.Metric, in map[string]json.Number) (models.Series, error) {
	out := make(models.Series, len(in))
	for key, raw := range in {
		d, err := ParseDate(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		v, err := raw.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s[%s]: value %q is not an integer", m, key, raw.String())
		}
		if v < 0 {
			return nil, fmt.Errorf("%s[%s]: negative count %d", m, key, v)
		}
		if _, dup := out[d]; dup {
			return nil, fmt.Errorf("%s: date %s appears twice", m, d)
		}
		out[d] = v
	}
	return out, nil
}

// ParseDate accepts the month/day/two-digit-year keys used by the
// historical source ("1/22/20") as well as ISO dates ("2020-01-22").
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		t, err := time.Parse("1/2/06", s)
		if err != nil {
			return civil.Date{}, fmt.Errorf("invalid date key %q", s)
		}
		return civil.DateOf(t), nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date key %q", s)
	}
	return d, nil
}
