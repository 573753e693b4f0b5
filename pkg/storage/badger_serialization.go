// JSON serialization for BadgerEngine values.
//
// Timestamps are stored as Unix nanoseconds so merge ordering survives a
// round-trip; a zero time encodes as 0 and decodes back to the zero value.

package storage

import (
	"encoding/json"
	"time"
)

type serializableNode struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Importance float64        `json:"importance"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`
}

type serializableEdge struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Type          string  `json:"type"`
	Strength      float64 `json:"strength"`
	Evidence      string  `json:"evidence,omitempty"`
	Bidirectional bool    `json:"bidirectional"`
	CreatedAt     int64   `json:"createdAt"`
	UpdatedAt     int64   `json:"updatedAt"`
}

type serializableInsight struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Type            string   `json:"type"`
	Confidence      float64  `json:"confidence"`
	NodeIDs         []string `json:"nodeIds"`
	SupportingEdges []string `json:"supportingEdges,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

type serializableHypothesis struct {
	ID               string  `json:"id"`
	Source           string  `json:"source"`
	Target           string  `json:"target"`
	RelationshipType string  `json:"relationshipType"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning,omitempty"`
	Tested           bool    `json:"tested"`
	Result           string  `json:"result,omitempty"`
	CreatedAt        int64   `json:"createdAt"`
}

func encodeNode(n *Node) ([]byte, error) {
	return json.Marshal(serializableNode{
		ID:         string(n.ID),
		Name:       n.Name,
		Type:       n.Type,
		Properties: n.Properties,
		Importance: n.Importance,
		CreatedAt:  timeToUnixNano(n.CreatedAt),
		UpdatedAt:  timeToUnixNano(n.UpdatedAt),
	})
}

func decodeNode(data []byte) (*Node, error) {
	var sn serializableNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, err
	}
	return &Node{
		ID:         NodeID(sn.ID),
		Name:       sn.Name,
		Type:       sn.Type,
		Properties: sn.Properties,
		Importance: sn.Importance,
		CreatedAt:  unixNanoToTime(sn.CreatedAt),
		UpdatedAt:  unixNanoToTime(sn.UpdatedAt),
	}, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	return json.Marshal(serializableEdge{
		ID:            string(e.ID),
		Source:        string(e.Source),
		Target:        string(e.Target),
		Type:          e.Type,
		Strength:      e.Strength,
		Evidence:      e.Evidence,
		Bidirectional: e.Bidirectional,
		CreatedAt:     timeToUnixNano(e.CreatedAt),
		UpdatedAt:     timeToUnixNano(e.UpdatedAt),
	})
}

func decodeEdge(data []byte) (*Edge, error) {
	var se serializableEdge
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}
	return &Edge{
		ID:            EdgeID(se.ID),
		Source:        NodeID(se.Source),
		Target:        NodeID(se.Target),
		Type:          se.Type,
		Strength:      se.Strength,
		Evidence:      se.Evidence,
		Bidirectional: se.Bidirectional,
		CreatedAt:     unixNanoToTime(se.CreatedAt),
		UpdatedAt:     unixNanoToTime(se.UpdatedAt),
	}, nil
}

func encodeInsight(in *Insight) ([]byte, error) {
	nodeIDs := make([]string, len(in.NodeIDs))
	for i, id := range in.NodeIDs {
		nodeIDs[i] = string(id)
	}
	edgeIDs := make([]string, len(in.SupportingEdges))
	for i, id := range in.SupportingEdges {
		edgeIDs[i] = string(id)
	}
	return json.Marshal(serializableInsight{
		ID:              in.ID,
		Text:            in.Text,
		Type:            in.Type,
		Confidence:      in.Confidence,
		NodeIDs:         nodeIDs,
		SupportingEdges: edgeIDs,
		CreatedAt:       timeToUnixNano(in.CreatedAt),
	})
}

func decodeInsight(data []byte) (*Insight, error) {
	var si serializableInsight
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, err
	}
	in := &Insight{
		ID:         si.ID,
		Text:       si.Text,
		Type:       si.Type,
		Confidence: si.Confidence,
		CreatedAt:  unixNanoToTime(si.CreatedAt),
	}
	for _, id := range si.NodeIDs {
		in.NodeIDs = append(in.NodeIDs, NodeID(id))
	}
	for _, id := range si.SupportingEdges {
		in.SupportingEdges = append(in.SupportingEdges, EdgeID(id))
	}
	return in, nil
}

func encodeHypothesis(h *Hypothesis) ([]byte, error) {
	return json.Marshal(serializableHypothesis{
		ID:               h.ID,
		Source:           string(h.Source),
		Target:           string(h.Target),
		RelationshipType: h.RelationshipType,
		Confidence:       h.Confidence,
		Reasoning:        h.Reasoning,
		Tested:           h.Tested,
		Result:           h.Result,
		CreatedAt:        timeToUnixNano(h.CreatedAt),
	})
}

func decodeHypothesis(data []byte) (*Hypothesis, error) {
	var sh serializableHypothesis
	if err := json.Unmarshal(data, &sh); err != nil {
		return nil, err
	}
	return &Hypothesis{
		ID:               sh.ID,
		Source:           NodeID(sh.Source),
		Target:           NodeID(sh.Target),
		RelationshipType: sh.RelationshipType,
		Confidence:       sh.Confidence,
		Reasoning:        sh.Reasoning,
		Tested:           sh.Tested,
		Result:           sh.Result,
		CreatedAt:        unixNanoToTime(sh.CreatedAt),
	}, nil
}

func timeToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func unixNanoToTime(ns int64) time.Time {
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
