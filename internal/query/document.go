package query

import (
	"github.com/roach88/firedesk/internal/codec"
	"github.com/roach88/firedesk/internal/store"
	"github.com/roach88/firedesk/internal/wire"
)

// Document is a query result in wire form.
type Document struct {
	ID   string   `json:"id"`
	Path string   `json:"path"`
	Data wire.Map `json:"data"`

	// Subcollections lists the names of the document's direct
	// subcollections. It is filled only by listeners that ask for it.
	Subcollections []string `json:"subcollections,omitempty"`
}

// NewDocument encodes s with c.
func NewDocument(c *codec.Codec, s store.Snapshot) (Document, error) {
	data, err := c.EncodeData(s.Data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: s.ID(), Path: s.Path, Data: data}, nil
}

// Flatten returns the document body with "id" set to the document id and,
// when subcollections were listed, "_subcollections" holding their names.
func (d Document) Flatten() wire.Map {
	out := make(wire.Map, len(d.Data)+2)
	for k, v := range d.Data {
		out[k] = v
	}
	out["id"] = wire.String(d.ID)
	if d.Subcollections != nil {
		names := make(wire.List, len(d.Subcollections))
		for i, n := range d.Subcollections {
			names[i] = wire.String(n)
		}
		out["_subcollections"] = names
	}
	return out
}
