package metrics

import (
	"strconv"

	"github.com/nfcollect/nfcollect/decoders/netflow"

	"github.com/prometheus/client_golang/prometheus"
)

// PromTemplatePersister counts template updates per router before handing
// them to the wrapped persister, if any.
type PromTemplatePersister struct {
	wrapped netflow.TemplatePersister
}

func NewPromTemplatePersister(wrapped netflow.TemplatePersister) *PromTemplatePersister {
	return &PromTemplatePersister{
		wrapped: wrapped,
	}
}

func (p *PromTemplatePersister) StoreTemplate(key netflow.ExporterKey, templateId uint16, fields []netflow.FieldDescriptor) error {
	NetFlowTemplatesStats.With(
		prometheus.Labels{
			"router":      string(key),
			"template_id": strconv.Itoa(int(templateId)),
		}).
		Inc()
	if p.wrapped == nil {
		return nil
	}
	return p.wrapped.StoreTemplate(key, templateId, fields)
}

func (p *PromTemplatePersister) RemoveExporter(key netflow.ExporterKey) error {
	NetFlowTemplatesStats.DeletePartialMatch(prometheus.Labels{"router": string(key)})
	if p.wrapped == nil {
		return nil
	}
	return p.wrapped.RemoveExporter(key)
}
