package static

import (
    "reflect"
    "testing"
)

func TestStaticSeeds(t *testing.T) {
    d := New(" 10.0.0.2:7946", "", "10.0.0.1:7946", "10.0.0.2:7946")
    want := []string{"10.0.0.1:7946", "10.0.0.2:7946"}
    if got := d.Seeds(); !reflect.DeepEqual(got, want) { t.Fatalf("got %v want %v", got, want) }

    got := d.Seeds()
    got[0] = "mutated"
    if d.Seeds()[0] != "10.0.0.1:7946" { t.Fatalf("Seeds must return a copy") }
}

func TestFromCSV(t *testing.T) {
    if got := FromCSV("").Seeds(); len(got) != 0 { t.Fatalf("empty csv gave %v", got) }
    if got := FromCSV("b:2, a:1").Seeds(); !reflect.DeepEqual(got, []string{"a:1", "b:2"}) { t.Fatalf("got %v", got) }
}
