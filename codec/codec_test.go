package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"ovs-unixctl/message"
)

func TestJSONCodecEncodeHasNoDelimiter(t *testing.T) {
	jsonCodec := &JSONCodec{}

	data, err := jsonCodec.Encode(message.NewRequest("list-commands", nil, 1))
	if err != nil {
		t.Fatalf("JSONCodec Encode failed: %v", err)
	}

	if bytes.HasSuffix(data, []byte("\n")) {
		t.Fatalf("encoded message must not end with a delimiter: %q", data)
	}
}

func TestJSONCodecDecodesBackToBackValues(t *testing.T) {
	jsonCodec := GetCodec(CodecTypeJSON)

	stream := strings.NewReader(`{"result":"a","id":1}{"result":"b","id":2}`)
	dec := jsonCodec.NewDecoder(stream)

	for i, want := range []string{`"a"`, `"b"`} {
		var resp message.Response
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("Decode #%d failed: %v", i, err)
		}
		if string(resp.Result) != want {
			t.Fatalf("Decode #%d result = %s, want %s", i, resp.Result, want)
		}
		if resp.ID == nil || *resp.ID != uint64(i+1) {
			t.Fatalf("Decode #%d id = %v, want %d", i, resp.ID, i+1)
		}
	}

	var resp message.Response
	if err := dec.Decode(&resp); !errors.Is(err, io.EOF) {
		t.Fatalf("Decode after last value = %v, want io.EOF", err)
	}
}

func TestJSONCodecLeavesFollowingBytesBuffered(t *testing.T) {
	jsonCodec := &JSONCodec{}
	dec := jsonCodec.NewDecoder(strings.NewReader(`{"id":1} {"id":2}`))

	var resp message.Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	rest, err := io.ReadAll(dec.Buffered())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rest), `{"id":2}`) {
		t.Fatalf("buffered bytes = %q, want the second value", rest)
	}
}

func TestJSONCodecTruncatedValue(t *testing.T) {
	dec := (&JSONCodec{}).NewDecoder(strings.NewReader(`{"result":"trunc`))

	var resp message.Response
	if err := dec.Decode(&resp); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Decode of truncated value = %v, want io.ErrUnexpectedEOF", err)
	}
}
