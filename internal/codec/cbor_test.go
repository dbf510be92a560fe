package codec

import (
	"bytes"
	"testing"

	"google.golang.org/grpc/encoding"
)

type sample struct {
	ChatID int64             `cbor:"chat_id"`
	Text   string            `cbor:"text,omitempty"`
	Tags   map[string]string `cbor:"tags,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	v := sample{ChatID: 7, Tags: map[string]string{"b": "2", "a": "1", "c": "3"}}

	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"chat_id": 3, "text": "hi", "extra": true})
	if err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ChatID != 3 || got.Text != "hi" {
		t.Errorf("got %+v", got)
	}
}

func TestAnyDecodesToStringMaps(t *testing.T) {
	data, err := Marshal(sample{ChatID: 1, Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	var got any
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Errorf("decoded %T, want map[string]any", got)
	}
}

func TestRegisteredWithGRPC(t *testing.T) {
	c := encoding.GetCodec(Name)
	if c == nil {
		t.Fatal("codec not registered")
	}
	data, err := c.Marshal(&sample{ChatID: 9})
	if err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ChatID != 9 {
		t.Errorf("ChatID = %d, want 9", got.ChatID)
	}
}
