package object_test

import (
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    object.Value
		want bool
	}{
		{object.Nil{}, false},
		{object.Bool(false), false},
		{object.Bool(true), true},
		{object.Int(0), true},
		{object.String(""), true},
		{object.NewVector(), true},
	}
	for _, c := range cases {
		if got := object.Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestIntFloatEqualIsStructural(t *testing.T) {
	if object.Int(3).Equal(object.Float(3.0)) {
		t.Error("Int(3) should not equal Float(3.0): different shapes")
	}
	if object.Float(3.0).Equal(object.Int(3)) {
		t.Error("Float(3.0) should not equal Int(3): different shapes")
	}
	if object.Int(3).Equal(object.Float(3.5)) {
		t.Error("Int(3) should not equal Float(3.5)")
	}
	if !object.Int(3).Equal(object.Int(3)) {
		t.Error("Int(3) should equal Int(3)")
	}
	if !object.Float(3.5).Equal(object.Float(3.5)) {
		t.Error("Float(3.5) should equal Float(3.5)")
	}
}

func TestKeywordEquality(t *testing.T) {
	a := object.Keyword{Name: "status"}
	b := object.Keyword{Name: "status"}
	c := object.Keyword{Namespace: "http", Name: "status"}
	if !a.Equal(b) {
		t.Error("same-name keywords should be equal")
	}
	if a.Equal(c) {
		t.Error("keywords with different namespaces should not be equal")
	}
	if a.String() != ":status" {
		t.Errorf("String() = %q, want :status", a.String())
	}
	if c.String() != ":http/status" {
		t.Errorf("String() = %q, want :http/status", c.String())
	}
}

func TestVectorEquality(t *testing.T) {
	a := object.NewVector(object.Int(1), object.Int(2))
	b := object.NewVector(object.Int(1), object.Int(2))
	c := object.NewVector(object.Int(1), object.Int(3))
	if !a.Equal(b) {
		t.Error("equal vectors should compare equal")
	}
	if a.Equal(c) {
		t.Error("different vectors should not compare equal")
	}
}

func TestSetAddIsIdempotentAndOrderIgnored(t *testing.T) {
	s := object.NewSet(object.Int(1), object.Int(2), object.Int(1))
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate should be ignored)", s.Len())
	}
	if !s.Contains(object.Int(1)) || !s.Contains(object.Int(2)) {
		t.Error("set should contain both distinct members")
	}

	a := object.NewSet(object.Int(1), object.Int(2))
	b := object.NewSet(object.Int(2), object.Int(1))
	if !a.Equal(b) {
		t.Error("sets built in different insertion order should still be equal")
	}
}

func TestMapAssocIsCopyOnWrite(t *testing.T) {
	m1 := object.EmptyMap()
	m2 := m1.Assoc(object.String("a"), object.Int(1))

	if m1.Len() != 0 {
		t.Fatalf("original map mutated: Len() = %d, want 0", m1.Len())
	}
	if m2.Len() != 1 {
		t.Fatalf("m2.Len() = %d, want 1", m2.Len())
	}
	v, ok := m2.Get(object.String("a"))
	if !ok || v != object.Int(1) {
		t.Errorf("m2.Get(a) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := m1.Get(object.String("a")); ok {
		t.Error("original map should not see the new key")
	}
}

func TestMapAssocOverwritesExistingKey(t *testing.T) {
	m := object.EmptyMap().Assoc(object.String("a"), object.Int(1))
	m2 := m.Assoc(object.String("a"), object.Int(2))
	v, _ := m2.Get(object.String("a"))
	if v != object.Int(2) {
		t.Errorf("Get(a) = %v, want 2", v)
	}
	if m2.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (overwrite should not grow the map)", m2.Len())
	}
}

func TestMapDissoc(t *testing.T) {
	m := object.NewMap(object.String("a"), object.Int(1), object.String("b"), object.Int(2))
	m2 := m.Dissoc(object.String("a"))
	if m2.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m2.Len())
	}
	if _, ok := m2.Get(object.String("a")); ok {
		t.Error("dissoc'd key should be gone")
	}
	if m.Len() != 2 {
		t.Error("Dissoc must not mutate the receiver")
	}
}

func TestMapKeysPreservesInsertionOrder(t *testing.T) {
	m := object.EmptyMap().
		Assoc(object.String("z"), object.Int(1)).
		Assoc(object.String("a"), object.Int(2)).
		Assoc(object.String("m"), object.Int(3))
	keys := m.Keys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() len = %d, want %d", len(keys), len(want))
	}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("Keys()[%d] = %s, want %s", i, k.String(), want[i])
		}
	}
}

func TestMapEqualityIgnoresOrder(t *testing.T) {
	a := object.EmptyMap().Assoc(object.String("x"), object.Int(1)).Assoc(object.String("y"), object.Int(2))
	b := object.EmptyMap().Assoc(object.String("y"), object.Int(2)).Assoc(object.String("x"), object.Int(1))
	if !a.Equal(b) {
		t.Error("maps with the same entries in different insertion order should be equal")
	}
}

func TestFromJSONNumberSplitsIntFloat(t *testing.T) {
	if v := object.FromJSON(float64(3)); v.Kind() != object.KindInt {
		t.Errorf("FromJSON(3.0) kind = %s, want int", v.Kind())
	}
	if v := object.FromJSON(float64(3.5)); v.Kind() != object.KindFloat {
		t.Errorf("FromJSON(3.5) kind = %s, want float", v.Kind())
	}
}

func TestFromJSONRoundTripsNestedStructures(t *testing.T) {
	raw := map[string]any{
		"name":  "widget",
		"count": float64(3),
		"tags":  []any{"a", "b"},
	}
	v := object.FromJSON(raw)
	m, ok := v.(*object.Map)
	if !ok {
		t.Fatalf("FromJSON(map) = %T, want *object.Map", v)
	}
	name, _ := m.Get(object.String("name"))
	if name.String() != "widget" {
		t.Errorf("name = %v, want widget", name)
	}
	back := object.ToJSON(m)
	backMap, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("ToJSON = %T, want map[string]any", back)
	}
	if backMap["name"] != "widget" {
		t.Errorf("round-tripped name = %v, want widget", backMap["name"])
	}
	if backMap["count"] != int64(3) {
		t.Errorf("round-tripped count = %v, want int64(3)", backMap["count"])
	}
}

func TestToJSONKeyword(t *testing.T) {
	got := object.ToJSON(object.Keyword{Name: "ok"})
	if got != ":ok" {
		t.Errorf("ToJSON(keyword) = %v, want :ok", got)
	}
}
