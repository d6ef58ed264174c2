package schema

import (
	"testing"

	"github.com/authorstack/authorstack/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insight struct {
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

func TestExtractFindsPayloadInsideProse(t *testing.T) {
	payload, ok := Extract("Sure! ```json\n[{\"a\":1}]\n``` hope that helps")
	require.True(t, ok)
	assert.Equal(t, `[{"a":1}]`, payload)

	_, ok = Extract("no json here")
	assert.False(t, ok)
}

func TestDecodeAcceptsValidInsights(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	var out []insight
	content := `Here you go: [{"type":"trend","title":"Up","description":"Revenue grew 12%","confidence":0.8}]`
	require.NoError(t, r.Decode(Insights, content, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "trend", out[0].Type)
	assert.InDelta(t, 0.8, out[0].Confidence, 1e-9)
}

func TestDecodeRejectsMalformedOutput(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	cases := map[string]string{
		"no payload":      "I cannot help with that",
		"broken json":     `[{"type":"trend",]`,
		"unknown type":    `[{"type":"rumour","title":"x","description":"y","confidence":0.5}]`,
		"confidence > 1":  `[{"type":"trend","title":"x","description":"y","confidence":3}]`,
		"missing title":   `[{"type":"trend","description":"y","confidence":0.2}]`,
		"object not list": `{"type":"trend","title":"x","description":"y","confidence":0.2}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			var out []insight
			err := r.Decode(Insights, content, &out)
			require.Error(t, err)

			verrs, ok := validation.As(err)
			require.True(t, ok)
			require.Len(t, verrs, 1)
			assert.Equal(t, CodeInvalidResponse, verrs[0].Code)
			assert.Equal(t, "response", verrs[0].Field)
		})
	}
}

func TestDecodeValidatesForecastDates(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	var out map[string]any
	bad := `{"predictedRevenue":10,"confidence":0.5,"factors":[],"dailyPredictions":[{"date":"tomorrow","revenue":1,"confidence":0.5}]}`
	assert.Error(t, r.Decode(Forecast, bad, &out))

	good := `{"predictedRevenue":10,"confidence":0.5,"factors":["launch"],"dailyPredictions":[{"date":"2026-02-01","revenue":1,"confidence":0.5}]}`
	assert.NoError(t, r.Decode(Forecast, good, &out))
}

func TestDecodeUnknownSchema(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, r.Decode("nope", "{}", &struct{}{}))
}
