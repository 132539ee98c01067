package discovery

import (
    "reflect"
    "testing"
)

func TestNormalize(t *testing.T) {
    got := Normalize([]string{" b:2", "a:1", "", "b:2 "})
    if want := []string{"a:1", "b:2"}; !reflect.DeepEqual(got, want) { t.Fatalf("got %v want %v", got, want) }
    if got := Normalize([]string{" ", ""}); got != nil { t.Fatalf("blank input should give nil, got %v", got) }
}

func TestSplitCSV(t *testing.T) {
    cases := map[string][]string{
        "":             nil,
        "a:1":          {"a:1"},
        " a:1 ,, b:2 ": {"a:1", "b:2"},
    }
    for in, want := range cases {
        if got := SplitCSV(in); !reflect.DeepEqual(got, want) { t.Fatalf("SplitCSV(%q) = %v, want %v", in, got, want) }
    }
}

func TestMerge(t *testing.T) {
    a := Func(func() []string { return []string{"b:2", "a:1"} })
    b := Func(func() []string { return []string{"a:1", "c:3"} })
    got := Merge(a, nil, b).Seeds()
    if want := []string{"a:1", "b:2", "c:3"}; !reflect.DeepEqual(got, want) { t.Fatalf("got %v want %v", got, want) }
}
