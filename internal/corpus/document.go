// Package corpus defines the movie Document record and the loaders that hand
// an ordered document sequence and a stop-word set to the indexer.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one movie record. Fields other than id, title and description
// are kept verbatim in Extra and written back out unchanged.
type Document struct {
	ID          int                        `json:"id" cbor:"1,keyasint"`
	Title       string                     `json:"title" cbor:"2,keyasint"`
	Description string                     `json:"description" cbor:"3,keyasint"`
	Extra       map[string]json.RawMessage `json:"-" cbor:"4,keyasint,omitempty"`
}

// Text is the indexed text: title and description joined by one space.
func (d Document) Text() string {
	return d.Title + " " + d.Description
}

var knownFields = map[string]struct{}{"id": {}, "title": {}, "description": {}}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("document is missing an id")
	}
	var doc Document
	if err := json.Unmarshal(idRaw, &doc.ID); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &doc.Title); err != nil {
			return fmt.Errorf("document %d title: %w", doc.ID, err)
		}
	}
	if v, ok := raw["description"]; ok {
		if err := json.Unmarshal(v, &doc.Description); err != nil {
			return fmt.Errorf("document %d description: %w", doc.ID, err)
		}
	}
	for key, value := range raw {
		if _, known := knownFields[key]; known {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			return fmt.Errorf("document %d field %q: %w", doc.ID, key, err)
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[key] = compact.Bytes()
	}
	*d = doc
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+3)
	for key, value := range d.Extra {
		out[key] = value
	}
	var err error
	if out["id"], err = json.Marshal(d.ID); err != nil {
		return nil, err
	}
	if out["title"], err = json.Marshal(d.Title); err != nil {
		return nil, err
	}
	if out["description"], err = json.Marshal(d.Description); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}
