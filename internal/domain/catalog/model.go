package catalog

import "encoding/json"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind names the payload variant of a record.
type Kind string

const (
	KindLegacy       Kind = "legacy"
	KindConversation Kind = "conversation"
)

// Payload is the content an annotator reviews. It is either Legacy or Conversation.
type Payload interface {
	Kind() Kind
}

// Legacy is the flat source/translation record shape.
type Legacy struct {
	Source      string `json:"source_text"`
	Translation string `json:"pidgin_translation"`
}

// Kind implements Payload.
func (Legacy) Kind() Kind { return KindLegacy }

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the role/content array record shape.
type Conversation struct {
	Turns []Turn `json:"conversations"`
}

// Kind implements Payload.
func (Conversation) Kind() Kind { return KindConversation }

// Record is a normalized catalog entry. Fields keeps every top-level field of
// the source line so exports can round-trip data the engine never looks at.
type Record struct {
	ID      string                     `json:"id"`
	Payload Payload                    `json:"-"`
	Fields  map[string]json.RawMessage `json:"-"`
}

// Catalog is the ordered, read-only set of records loaded at startup.
type Catalog struct {
	records []Record
	index   map[string]int
}

// New builds a catalog from already normalized records.
func New(records []Record) (*Catalog, error) {
	c := &Catalog{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, rec := range records {
		if _, dup := c.index[rec.ID]; dup {
			return nil, &DuplicateIDError{ID: rec.ID}
		}
		c.index[rec.ID] = len(c.records)
		c.records = append(c.records, rec)
	}
	return c, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// IDs returns record ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.records))
	for i, rec := range c.records {
		ids[i] = rec.ID
	}
	return ids
}

// Records returns a copy of the records in catalog order.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Record looks up a record by id.
func (c *Catalog) Record(id string) (Record, bool) {
	i, ok := c.index[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}
