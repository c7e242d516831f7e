package main

import (
	"encoding/json"
	"testing"

	"github.com/mrnavastar/uemodman/util/fileutils"
)

func TestModRows_SkipsNullRecords(t *testing.T) {
	var manifest fileutils.Manifest
	raw := `{"mods":{"5":null,"7":{"file_name":"b.zip","version":"1.2"}},"local_mods":{"a.zip":null,"c.zip":{"version":"0.1"}}}`
	if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
		t.Fatal(err)
	}

	rows := modRows(manifest)
	want := []modRow{{"7", "1.2", "b.zip"}, {"local", "0.1", "c.zip"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}
