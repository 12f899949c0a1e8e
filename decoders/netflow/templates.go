package netflow

import (
	"errors"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// ExporterKey identifies the device a datagram came from. Template ids are
// only meaningful relative to it.
type ExporterKey string

// ExporterKeyFromAddrPort formats the source of a datagram.
func ExporterKeyFromAddrPort(src netip.AddrPort) ExporterKey {
	return ExporterKey(src.String())
}

// TemplatePersister receives every template update, typically to store it
// somewhere that survives restarts.
type TemplatePersister interface {
	StoreTemplate(key ExporterKey, templateId uint16, fields []FieldDescriptor) error
	RemoveExporter(key ExporterKey) error
}

type exporterTemplates struct {
	schemas  map[uint16]*RecordSchema
	lastSeen time.Time
}

// TemplateCache maps an exporter and a template id to a compiled schema.
// Entries are never dropped unless ExpireBefore is called.
type TemplateCache struct {
	catalog   *FieldCatalog
	lock      *sync.RWMutex
	exporters map[ExporterKey]*exporterTemplates
	persister TemplatePersister
	now       func() time.Time
}

type TemplateCacheOption func(*TemplateCache)

// WithPersister registers a hook called on every update.
func WithPersister(p TemplatePersister) TemplateCacheOption {
	return func(c *TemplateCache) {
		c.persister = p
	}
}

// WithCatalog overrides DefaultCatalog.
func WithCatalog(catalog *FieldCatalog) TemplateCacheOption {
	return func(c *TemplateCache) {
		c.catalog = catalog
	}
}

func NewTemplateCache(opts ...TemplateCacheOption) *TemplateCache {
	c := &TemplateCache{
		catalog:   DefaultCatalog,
		lock:      &sync.RWMutex{},
		exporters: make(map[ExporterKey]*exporterTemplates),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the field catalog used to build schemas.
func (c *TemplateCache) Catalog() *FieldCatalog {
	return c.catalog
}

func (c *TemplateCache) store(key ExporterKey, templateId uint16, schema *RecordSchema) {
	c.lock.Lock()
	defer c.lock.Unlock()
	exp, ok := c.exporters[key]
	if !ok {
		exp = &exporterTemplates{schemas: make(map[uint16]*RecordSchema)}
		c.exporters[key] = exp
	}
	exp.schemas[templateId] = schema
	exp.lastSeen = c.now()
}

// Update compiles fields and stores the schema under (key, templateId),
// replacing any previous one. Records already decoded are unaffected.
// A persister error is returned after the cache has been updated.
func (c *TemplateCache) Update(key ExporterKey, templateId uint16, fields []FieldDescriptor) (*RecordSchema, error) {
	schema := BuildSchema(c.catalog, fields)
	c.store(key, templateId, schema)
	if c.persister != nil {
		if err := c.persister.StoreTemplate(key, templateId, fields); err != nil {
			return schema, err
		}
	}
	return schema, nil
}

// Restore loads a template without notifying the persister.
func (c *TemplateCache) Restore(key ExporterKey, templateId uint16, fields []FieldDescriptor) {
	c.store(key, templateId, BuildSchema(c.catalog, fields))
}

// Match returns the schema registered by key for templateId.
func (c *TemplateCache) Match(key ExporterKey, templateId uint16) (*RecordSchema, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	exp, ok := c.exporters[key]
	if !ok {
		return nil, false
	}
	schema, ok := exp.schemas[templateId]
	return schema, ok
}

// Touch marks the exporter as active without changing its templates.
func (c *TemplateCache) Touch(key ExporterKey) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if exp, ok := c.exporters[key]; ok {
		exp.lastSeen = c.now()
	}
}

// Exporters lists the exporters holding at least one template.
func (c *TemplateCache) Exporters() []ExporterKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	keys := make([]ExporterKey, 0, len(c.exporters))
	for key := range c.exporters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Templates returns a copy of the templates known for key.
func (c *TemplateCache) Templates(key ExporterKey) map[uint16]*RecordSchema {
	c.lock.RLock()
	defer c.lock.RUnlock()
	exp, ok := c.exporters[key]
	if !ok {
		return nil
	}
	out := make(map[uint16]*RecordSchema, len(exp.schemas))
	for id, schema := range exp.schemas {
		out[id] = schema
	}
	return out
}

// Len returns the total number of templates across exporters.
func (c *TemplateCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	var n int
	for _, exp := range c.exporters {
		n += len(exp.schemas)
	}
	return n
}

// ExpireBefore drops every exporter not seen since cutoff and returns the
// removed keys.
func (c *TemplateCache) ExpireBefore(cutoff time.Time) ([]ExporterKey, error) {
	c.lock.Lock()
	var removed []ExporterKey
	for key, exp := range c.exporters {
		if exp.lastSeen.Before(cutoff) {
			delete(c.exporters, key)
			removed = append(removed, key)
		}
	}
	c.lock.Unlock()

	var errs []error
	if c.persister != nil {
		for _, key := range removed {
			if err := c.persister.RemoveExporter(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return removed, errors.Join(errs...)
}
