package text

import (
	"encoding"
	"fmt"

	"github.com/nfcollect/nfcollect/format"
)

type TextDriver struct{}

func (d *TextDriver) Format(data any) ([]byte, []byte, error) {
	var key []byte
	if dataIf, ok := data.(interface{ Key() []byte }); ok {
		key = dataIf.Key()
	}
	switch v := data.(type) {
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		return key, text, err
	case fmt.Stringer:
		return key, []byte(v.String()), nil
	}
	return nil, nil, format.ErrNoSerializer
}

func init() {
	d := &TextDriver{}
	format.RegisterFormatDriver("text", d)
}
