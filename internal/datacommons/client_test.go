package datacommons

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithConfig(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
}

func TestResolve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resolve", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "Paris", r.URL.Query().Get("nodes"))
		assert.Equal(t, "<-description->dcid", r.URL.Query().Get("property"))
		fmt.Fprint(w, `{"entities":[{"node":"Paris","candidates":[{"dcid":"wikidataId/Q90"},{"dcid":"wikidataId/Q830149"}]}]}`)
	})

	dcid, err := client.Resolve(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "wikidataId/Q90", dcid)
}

func TestResolveNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"entities":[]}`)
	})

	_, err := client.Resolve(context.Background(), "Atlantis, Lost Ocean")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func TestResolveEmptyCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"entities":[{"node":"x","candidates":[]}]}`)
	})

	_, err := client.Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func TestResolveEmptyPlace(t *testing.T) {
	client := NewClient("test-key")

	_, err := client.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPlace)
}

func TestResolveAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"API key not valid"}`, http.StatusForbidden)
	})

	_, err := client.Resolve(context.Background(), "Paris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.NotErrorIs(t, err, ErrPlaceNotFound)
}

func TestResolveMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	})

	_, err := client.Resolve(context.Background(), "Paris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestResolveMissingAPIKey(t *testing.T) {
	client := NewClient("")

	_, err := client.Resolve(context.Background(), "Paris")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAvailableVariables(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observation", r.URL.Path)
		assert.Equal(t, "LATEST", r.URL.Query().Get("date"))
		assert.Equal(t, []string{"geoId/06", "country/FRA"}, r.URL.Query()["entity.dcids"])
		assert.Equal(t, []string{"entity", "variable"}, r.URL.Query()["select"])
		fmt.Fprint(w, `{"byVariable":{
			"Count_Person":{"byEntity":{"geoId/06":{},"country/FRA":{}}},
			"Median_Age_Person":{"byEntity":{"geoId/06":{}}}
		}}`)
	})

	vars, err := client.AvailableVariables(context.Background(), []string{"geoId/06", " country/FRA "})
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, []string{"Count_Person", "Median_Age_Person"}, vars["geoId/06"])
	assert.Equal(t, []string{"Count_Person"}, vars["country/FRA"])
}

func TestAvailableVariablesTruncatesToTen(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := `{"byVariable":{`
		for i := 0; i < 25; i++ {
			if i > 0 {
				payload += ","
			}
			payload += fmt.Sprintf(`"Variable_%02d":{"byEntity":{"geoId/06":{}}}`, i)
		}
		payload += `}}`
		fmt.Fprint(w, payload)
	})

	// The kept 10 must be the first 10 in service response order, not an
	// arbitrary subset.
	want := []string{
		"Variable_00", "Variable_01", "Variable_02", "Variable_03", "Variable_04",
		"Variable_05", "Variable_06", "Variable_07", "Variable_08", "Variable_09",
	}

	vars, err := client.AvailableVariables(context.Background(), []string{"geoId/06"})
	require.NoError(t, err)
	assert.Equal(t, want, vars["geoId/06"])

	// Same payload, same result: truncation is deterministic.
	again, err := client.AvailableVariables(context.Background(), []string{"geoId/06"})
	require.NoError(t, err)
	assert.Equal(t, vars["geoId/06"], again["geoId/06"])
}

func TestAvailableVariablesPlaceWithoutData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"byVariable":{}}`)
	})

	vars, err := client.AvailableVariables(context.Background(), []string{"geoId/99"})
	require.NoError(t, err)
	require.Contains(t, vars, "geoId/99")
	assert.Empty(t, vars["geoId/99"])
}

func TestAvailableVariablesNoDCIDs(t *testing.T) {
	client := NewClient("test-key")

	_, err := client.AvailableVariables(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrNoDCIDs)
}

func TestPopulationCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observation", r.URL.Path)
		assert.Equal(t, "2020", r.URL.Query().Get("date"))
		assert.Equal(t, "Count_Person", r.URL.Query().Get("variable.dcids"))
		assert.Equal(t, []string{"entity", "variable", "value", "date"}, r.URL.Query()["select"])
		fmt.Fprint(w, `{"byVariable":{"Count_Person":{"byEntity":{
			"geoId/06":{"orderedFacets":[{"facetId":"census","observations":[{"date":"2020","value":39538223}]}]},
			"country/FRA":{"orderedFacets":[{"facetId":"insee","observations":[{"date":"2020","value":67391582}]}]}
		}}}}`)
	})

	got, err := client.PopulationCount(context.Background(), []string{"country/FRA", "geoId/06"}, "2020")
	require.NoError(t, err)

	want := []Observation{
		{DCID: "country/FRA", Variable: "Count_Person", Date: "2020", Value: float64(67391582), HasData: true},
		{DCID: "geoId/06", Variable: "Count_Person", Date: "2020", Value: float64(39538223), HasData: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestPopulationCountPreservesInputOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"byVariable":{"Count_Person":{"byEntity":{
			"a":{"orderedFacets":[{"observations":[{"date":"2021","value":1}]}]},
			"b":{"orderedFacets":[{"observations":[{"date":"2021","value":2}]}]},
			"c":{"orderedFacets":[{"observations":[{"date":"2021","value":3}]}]}
		}}}}`)
	})

	got, err := client.PopulationCount(context.Background(), []string{"c", "a", "b"}, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].DCID)
	assert.Equal(t, "a", got[1].DCID)
	assert.Equal(t, "b", got[2].DCID)
}

func TestPopulationCountAbsenceMarker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 1848 predates coverage; the service returns no observations.
		fmt.Fprint(w, `{"byVariable":{"Count_Person":{"byEntity":{
			"geoId/06":{"orderedFacets":[]}
		}}}}`)
	})

	got, err := client.PopulationCount(context.Background(), []string{"geoId/06", "geoId/unknown"}, "1848")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, obs := range got {
		assert.False(t, obs.HasData)
		assert.Empty(t, obs.Date)
	}
}

func TestPopulationCountSkipsEmptyFacets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"byVariable":{"Count_Person":{"byEntity":{
			"geoId/06":{"orderedFacets":[
				{"facetId":"sparse","observations":[]},
				{"facetId":"census","observations":[{"date":"2023","value":38965193}]}
			]}
		}}}}`)
	})

	got, err := client.PopulationCount(context.Background(), []string{"geoId/06"}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasData)
	assert.Equal(t, "2023", got[0].Date)
}

func TestPopulationCountDefaultsToLatest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "LATEST", r.URL.Query().Get("date"))
		fmt.Fprint(w, `{"byVariable":{}}`)
	})

	_, err := client.PopulationCount(context.Background(), []string{"geoId/06"}, "")
	require.NoError(t, err)
}
