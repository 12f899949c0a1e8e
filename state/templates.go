package state

import (
	"errors"
	"net/url"

	"github.com/nfcollect/nfcollect/decoders/netflow"
)

const DefaultTemplatesPrefix = "nfcollect:nf_templates:"

type templatesKey struct {
	Exporter   string `json:"exporter"`
	TemplateID uint16 `json:"tid"`
}

type templatesValue struct {
	Fields []netflow.FieldDescriptor `json:"fields"`
}

// TemplateStore persists NetFlow v9 templates per exporter. It implements
// netflow.TemplatePersister.
type TemplateStore struct {
	db State[templatesKey, templatesValue]
}

// OpenTemplateStore opens a state URL, adding the default redis prefix when
// none is set.
func OpenTemplateStore(rawUrl string) (*TemplateStore, error) {
	templatesUrl, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}
	if (templatesUrl.Scheme == "redis" || templatesUrl.Scheme == "rediss") && !templatesUrl.Query().Has("prefix") {
		q := templatesUrl.Query()
		q.Set("prefix", DefaultTemplatesPrefix)
		templatesUrl.RawQuery = q.Encode()
	}
	db, err := NewState[templatesKey, templatesValue](templatesUrl.String())
	if err != nil {
		return nil, err
	}
	return &TemplateStore{db: db}, nil
}

func (s *TemplateStore) StoreTemplate(key netflow.ExporterKey, templateId uint16, fields []netflow.FieldDescriptor) error {
	return s.db.Add(templatesKey{
		Exporter:   string(key),
		TemplateID: templateId,
	}, templatesValue{
		Fields: append([]netflow.FieldDescriptor(nil), fields...),
	})
}

func (s *TemplateStore) RemoveExporter(key netflow.ExporterKey) error {
	var errs []error
	for k := range s.db.All() {
		if k.Exporter != string(key) {
			continue
		}
		if err := s.db.Delete(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore loads every stored template into cache and returns how many were
// loaded.
func (s *TemplateStore) Restore(cache *netflow.TemplateCache) int {
	all := s.db.All()
	for k, v := range all {
		cache.Restore(netflow.ExporterKey(k.Exporter), k.TemplateID, v.Fields)
	}
	return len(all)
}

func (s *TemplateStore) Close() error {
	return s.db.Close()
}
