// Package catalog holds the static model tables the fixture serves: the
// allow-list of known model names and the record-mode backend endpoints.
package catalog

import (
	"fmt"
	"net"
	"slices"
	"strconv"
)

// Models is the allow-list of model names the fixture accepts. Calls naming
// any other model fail before the recording store is touched.
var Models = []string{
	"acronym_detector",
	"document_classifier",
	"sentence_embed",
	"ner",
	"keybert",
	"ingestor",
	"coreference_resolution",
	"cross_encoder",
	"llama_7b",
	"mistral_7b_instruct",
}

// Endpoint maps a group of models to the backend port that serves them.
type Endpoint struct {
	Models []string
	Port   int
}

// Endpoints is the record-mode backend table. Every model listed here must
// also appear in Models.
var Endpoints = []Endpoint{
	{Models: []string{"cross_encoder", "coreference_resolution"}, Port: 8304},
	{Models: []string{"llama_7b"}, Port: 8305},
	{Models: []string{"mistral_7b_instruct"}, Port: 8307},
}

// ListenPorts are the ports the fixture listens on by default.
var ListenPorts = []int{8004, 8005, 8007}

// IsKnown reports whether name is on the model allow-list.
func IsKnown(name string) bool {
	return slices.Contains(Models, name)
}

// BackendAddrs resolves the endpoint table against host, returning a model
// name to "host:port" mapping.
func BackendAddrs(host string, endpoints []Endpoint) (map[string]string, error) {
	if host == "" {
		return nil, fmt.Errorf("backend host is required")
	}
	addrs := make(map[string]string)
	for _, endpoint := range endpoints {
		if endpoint.Port <= 0 || endpoint.Port > 65535 {
			return nil, fmt.Errorf("backend port %d is out of range", endpoint.Port)
		}
		for _, model := range endpoint.Models {
			if !IsKnown(model) {
				return nil, fmt.Errorf("backend model %q is not a known model", model)
			}
			if _, ok := addrs[model]; ok {
				return nil, fmt.Errorf("backend model %q is mapped twice", model)
			}
			addrs[model] = net.JoinHostPort(host, strconv.Itoa(endpoint.Port))
		}
	}
	return addrs, nil
}
