package engine

import (
	"bufio"
	"io"

	"github.com/segmentio/encoding/json"
)

type evJSON struct {
	V  uint8 `json:"v"`
	Ev Event `json:"ev"`
}

// JSONEvCodec 事件的 JSON 编码，带版本号
type JSONEvCodec struct{ Version uint8 }

func (c JSONEvCodec) Encode(dst []byte, ev Event) ([]byte, error) {
	b, err := json.Marshal(evJSON{V: c.Version, Ev: ev})
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func (c JSONEvCodec) Decode(payload []byte) (Event, error) {
	var rec evJSON
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Event{}, err
	}
	return rec.Ev, nil
}

// JSONEventWriter 把事件按行写成 JSON（jsonl），只做导出不做回放
type JSONEventWriter struct {
	w     *bufio.Writer
	codec JSONEvCodec
	buf   []byte
}

func NewJSONEventWriter(w io.Writer) *JSONEventWriter {
	return &JSONEventWriter{w: bufio.NewWriterSize(w, 64<<10), codec: JSONEvCodec{Version: 1}}
}

func (j *JSONEventWriter) Write(ev Event) error {
	var err error
	// 复用 buf，避免每条事件分配
	j.buf, err = j.codec.Encode(j.buf[:0], ev)
	if err != nil {
		return err
	}
	j.buf = append(j.buf, '\n')
	_, err = j.w.Write(j.buf)
	return err
}

func (j *JSONEventWriter) Flush() error { return j.w.Flush() }
