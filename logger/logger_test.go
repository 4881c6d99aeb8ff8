package logger

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestParseLevel(t *testing.T) {
	if ParseLevel("trace") != TRACE {
		t.Error("lowercase trace not parsed")
	}
	if ParseLevel("ERROR") != ERROR {
		t.Error("ERROR not parsed")
	}
	// Unknown strings fall back to INFO.
	if ParseLevel("chatty") != INFO {
		t.Error("unknown level did not default to INFO")
	}
}

func TestToJSONPlainValue(t *testing.T) {
	value := struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}{Command: "set-local-name", Args: []string{"living room"}}

	out := ToJSON(value)
	if !strings.Contains(out, `"command": "set-local-name"`) {
		t.Errorf("output missing command field:\n%s", out)
	}
	if !strings.Contains(out, `"living room"`) {
		t.Errorf("output missing args value:\n%s", out)
	}
}

func TestToJSONProtoMessage(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"state":   "ON",
		"address": "AA:BB:CC:DD:EE:FF",
	})
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}

	// Proto values go through protojson. Its whitespace is deliberately
	// unstable, so only check for the keys and values.
	out := ToJSON(msg)
	for _, want := range []string{`"state"`, `"ON"`, `"address"`, `"AA:BB:CC:DD:EE:FF"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "\n") {
		t.Errorf("proto output not multiline:\n%s", out)
	}
}
