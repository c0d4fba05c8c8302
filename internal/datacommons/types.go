package datacommons

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Observation is a single (place, variable, date) -> value record.
// HasData is false when the service has no observation for the place
// at the requested date; such places are still reported, never dropped.
type Observation struct {
	DCID     string `json:"dcid"`
	Variable string `json:"variable"`
	Date     string `json:"date,omitempty"`
	Value    any    `json:"value,omitempty"` // number or string, as returned by the service
	HasData  bool   `json:"has_data"`
}

// resolveResponse mirrors the /v2/resolve payload.
type resolveResponse struct {
	Entities []resolveEntity `json:"entities"`
}

type resolveEntity struct {
	Node       string             `json:"node"`
	Candidates []resolveCandidate `json:"candidates"`
}

type resolveCandidate struct {
	DCID string `json:"dcid"`
}

// observationResponse mirrors the /v2/observation payload.
// Only the fields this client reads are declared.
type observationResponse struct {
	ByVariable orderedVariables `json:"byVariable"`
}

// orderedVariables holds the byVariable object with its keys in document
// order. A plain map would discard key order, but variable truncation
// must keep the order the service responded with.
type orderedVariables struct {
	names []string
	data  map[string]variableData
}

func (v *orderedVariables) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("byVariable is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("byVariable has a non-string key")
		}

		var data variableData
		if err := dec.Decode(&data); err != nil {
			return err
		}

		if v.data == nil {
			v.data = make(map[string]variableData)
		}
		if _, seen := v.data[name]; !seen {
			v.names = append(v.names, name)
		}
		v.data[name] = data
	}
	return nil
}

// Names returns the variable DCIDs in service response order.
func (v orderedVariables) Names() []string {
	return v.names
}

// Get returns the data for one variable.
func (v orderedVariables) Get(name string) variableData {
	return v.data[name]
}

// Len returns the number of variables in the response.
func (v orderedVariables) Len() int {
	return len(v.names)
}

type variableData struct {
	ByEntity map[string]entityData `json:"byEntity"`
}

type entityData struct {
	OrderedFacets []facet `json:"orderedFacets"`
}

type facet struct {
	FacetID      string            `json:"facetId"`
	Observations []wireObservation `json:"observations"`
}

type wireObservation struct {
	Date  string `json:"date"`
	Value any    `json:"value"`
}
