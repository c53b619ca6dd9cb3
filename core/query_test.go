package core

import (
	"context"
	"testing"
)

func TestCompileListQuery(t *testing.T) {
	codec := newTestCodec(t, nil)
	et, _ := codec.registry.Type(EntitySip)

	q, err := codec.CompileListQuery(context.Background(), et, ListParams{
		Where: `{"amount": 250, "bottleSerialNumber": "SN-1"}`,
		Order: "-time",
		Limit: "25",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(q.Conditions) != 2 {
		t.Fatalf("conditions = %v", q.Conditions)
	}
	for _, cond := range q.Conditions {
		switch cond.Field {
		case "amount":
			if cond.Value != int64(250) {
				t.Fatalf("amount condition = %v (%T)", cond.Value, cond.Value)
			}
		case "bottleSerialNumber":
			if cond.Value != "SN-1" {
				t.Fatalf("serial condition = %v", cond.Value)
			}
		default:
			t.Fatalf("unexpected condition field %q", cond.Field)
		}
	}
	if q.Order != "time" || !q.Descending {
		t.Fatalf("order = %q descending=%v", q.Order, q.Descending)
	}
	if q.Limit != 25 {
		t.Fatalf("limit = %d", q.Limit)
	}
}

func TestCompileListQueryRejections(t *testing.T) {
	codec := newTestCodec(t, nil)
	et, _ := codec.registry.Type(EntitySip)

	cases := []struct {
		name   string
		params ListParams
		want   string
	}{
		{"malformed where", ListParams{Where: `{"amount":`}, "invalid json"},
		{"unknown where key", ListParams{Where: `{"nope": 1}`}, "invalid where"},
		{"bad where value", ListParams{Where: `{"amount": "many"}`}, "invalid where"},
		{"unknown order field", ListParams{Order: "nope"}, "invalid order"},
		{"unknown descending order", ListParams{Order: "-nope"}, "invalid order"},
		{"non-numeric limit", ListParams{Limit: "lots"}, "invalid limit"},
		{"zero limit", ListParams{Limit: "0"}, "invalid limit"},
		{"negative limit", ListParams{Limit: "-5"}, "invalid limit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.CompileListQuery(context.Background(), et, tc.params)
			if err == nil {
				t.Fatal("expected rejection")
			}
			_, body := Envelope(err)
			if body["error"] != tc.want {
				t.Fatalf("error = %v, want %q", body["error"], tc.want)
			}
			if body["code"] != CodeInvalidInput {
				t.Fatalf("code = %v, want %d", body["code"], CodeInvalidInput)
			}
		})
	}
}
