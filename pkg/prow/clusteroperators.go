package prow

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// clusterOperatorList mirrors the items/conditions shape of the
// clusteroperators.json artifact gathered by must-gather.
type clusterOperatorList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status struct {
			Conditions []operatorCondition `json:"conditions"`
		} `json:"status"`
	} `json:"items"`
}

type operatorCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// operatorError is the rendered form of one unhealthy operator condition.
type operatorError struct {
	Name    string `json:"Name"`
	Status  string `json:"Status"`
	Reason  string `json:"Reason"`
	Message string `json:"Message"`
}

// ClusterOperatorErrors reads <dir>/clusteroperators.json and returns one
// JSON-rendered entry per operator that is Degraded=True or Available=False.
// A missing or malformed file yields no errors: operator health is a
// best-effort signal, not a hard dependency.
func ClusterOperatorErrors(dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, "clusteroperators.json"))
	if err != nil {
		return nil
	}
	var list clusterOperatorList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}

	var errsOut []string
	for _, item := range list.Items {
		for _, cond := range item.Status.Conditions {
			degraded := cond.Type == "Degraded" && cond.Status == "True"
			unavailable := cond.Type == "Available" && cond.Status == "False"
			if !degraded && !unavailable {
				continue
			}
			entry := operatorError{
				Name:    item.Metadata.Name,
				Status:  cond.Status,
				Reason:  cond.Reason,
				Message: cond.Message,
			}
			rendered, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			errsOut = append(errsOut, string(rendered))
		}
	}
	return errsOut
}
