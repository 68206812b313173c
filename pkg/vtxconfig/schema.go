package vtxconfig

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"vtxgo/pkg/vtxerr"
)

// documentSchema bounds the shape of a JSON config document before it ever
// reaches viper's Unmarshal: mtu must be able to carry a header, every
// retransmission/timeout/count field must be positive. Mirrors the way
// filegrind-capns-go uses gojsonschema to gate a document before it is
// decoded into a Go struct.
const documentSchema = `{
  "type": "object",
  "properties": {
    "mtu": {"type": "integer", "minimum": 17, "maximum": 65535},
    "send_buf_bytes": {"type": "integer", "minimum": 0},
    "recv_buf_bytes": {"type": "integer", "minimum": 0},
    "retrans_timeout_ms": {"type": "integer", "minimum": 1},
    "max_retrans": {"type": "integer", "minimum": 1},
    "data_retrans_timeout_ms": {"type": "integer", "minimum": 1},
    "data_max_retrans": {"type": "integer", "minimum": 1},
    "connect_timeout_ms": {"type": "integer", "minimum": 1},
    "connect_max_retrans": {"type": "integer", "minimum": 1},
    "heartbeat_interval_ms": {"type": "integer", "minimum": 1},
    "heartbeat_max_miss": {"type": "integer", "minimum": 1},
    "frame_timeout_ms": {"type": "integer", "minimum": 1}
  },
  "additionalProperties": true
}`

// ValidateDocument validates the JSON document at path against
// documentSchema before any field is unmarshaled into a config struct.
func ValidateDocument(path string) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	docLoader := gojsonschema.NewReferenceLoader("file://" + path)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return vtxerr.Wrap(vtxerr.InvalidParam, "vtxconfig.ValidateDocument", err)
	}
	if !result.Valid() {
		return vtxerr.Wrap(vtxerr.InvalidParam, "vtxconfig.ValidateDocument", fmt.Errorf("%v", result.Errors()))
	}
	return nil
}

// ValidateDocumentBytes validates an in-memory JSON document, for callers
// that already hold the bytes (e.g. config delivered over a control
// channel rather than a file).
func ValidateDocumentBytes(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return vtxerr.Wrap(vtxerr.InvalidParam, "vtxconfig.ValidateDocumentBytes", err)
	}
	if !result.Valid() {
		return vtxerr.Wrap(vtxerr.InvalidParam, "vtxconfig.ValidateDocumentBytes", fmt.Errorf("%v", result.Errors()))
	}
	return nil
}
