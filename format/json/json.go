package json

import (
	"encoding/json"

	"github.com/nfcollect/nfcollect/format"
)

type JsonDriver struct{}

func (d *JsonDriver) Format(data any) ([]byte, []byte, error) {
	var key []byte
	if dataIf, ok := data.(interface{ Key() []byte }); ok {
		key = dataIf.Key()
	}
	output, err := json.Marshal(data)
	return key, output, err
}

func init() {
	d := &JsonDriver{}
	format.RegisterFormatDriver("json", d)
}
