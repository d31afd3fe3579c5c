// Package codec names the encodings a snapshot manifest may use.
//
// Every manifest records the name of its codec. A snapshot stays readable
// after Default changes as long as its codec is still registered.
package codec

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes manifests. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// GoJSON encodes with github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// JSON encodes with encoding/json. Its output is byte-compatible with GoJSON
// for manifests, so the two may read each other's snapshots.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }

// Default is the codec used for new manifests.
var Default Codec = GoJSON{}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{
		GoJSON{}.Name(): GoJSON{},
		JSON{}.Name():   JSON{},
	}
)

// Register makes c available to ByName. Names must be unique.
func Register(c Codec) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[c.Name()]; ok {
		return fmt.Errorf("codec %q already registered", c.Name())
	}
	registry[c.Name()] = c
	return nil
}

// ByName returns the registered codec called name.
func ByName(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Names lists the registered codecs in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
