package filecodec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "ns"), "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestDir_RoundTrip(t *testing.T) {
	d := newDir(t)
	name := d.Name("greeting")
	if len(name) != 64 {
		t.Fatalf("expected 64 char sha256 name, got %q", name)
	}

	cfg := Config{Key: "greeting", Tag: TagString, SaveTime: 1000, ValidTime: 500, LastModified: 1200}
	if err := d.WriteData(name, []byte("hello")); err != nil {
		t.Fatalf("WriteData failed: %v", err)
	}
	if err := d.WriteConfig(name, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	rec, err := d.Load(name)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Config != cfg {
		t.Errorf("expected config %+v, got %+v", cfg, rec.Config)
	}
	if rec.Size != 5 {
		t.Errorf("expected size 5, got %d", rec.Size)
	}

	data, err := d.ReadData(name)
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadData = %q, %v", data, err)
	}

	names, err := d.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("expected [%s], got %v", name, names)
	}
}

func TestDir_ConfigSchema(t *testing.T) {
	d := newDir(t)
	name := d.Name("k")

	cases := map[string]string{
		"not json":          `{"key":`,
		"missing key":       `{"type":5,"saveTime":1,"validTime":0,"lastModified":1}`,
		"missing type":      `{"key":"k","saveTime":1,"validTime":0,"lastModified":1}`,
		"missing saveTime":  `{"key":"k","type":5,"validTime":0,"lastModified":1}`,
		"missing validTime": `{"key":"k","type":5,"saveTime":1,"lastModified":1}`,
		"missing modified":  `{"key":"k","type":5,"saveTime":1,"validTime":0}`,
		"unknown type":      `{"key":"k","type":42,"saveTime":1,"validTime":0,"lastModified":1}`,
	}
	for desc, body := range cases {
		t.Run(desc, func(t *testing.T) {
			if err := os.WriteFile(d.ConfigPath(name), []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := d.ReadConfig(name); !errors.Is(err, ErrCorruptConfig) {
				t.Errorf("expected ErrCorruptConfig, got %v", err)
			}
		})
	}

	t.Run("field order is irrelevant", func(t *testing.T) {
		body := `{"lastModified":3,"validTime":0,"saveTime":2,"type":6,"key":"k"}`
		if err := os.WriteFile(d.ConfigPath(name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		c, err := d.ReadConfig(name)
		if err != nil {
			t.Fatalf("ReadConfig failed: %v", err)
		}
		if c.Tag != TagBytes || c.SaveTime != 2 || c.LastModified != 3 {
			t.Errorf("unexpected config %+v", c)
		}
	})
}

func TestDir_MissingFiles(t *testing.T) {
	d := newDir(t)
	name := d.Name("k")

	if _, err := d.ReadConfig(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := d.WriteConfig(name, Config{Key: "k", Tag: TagInt, SaveTime: 1, LastModified: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Load(name); !errors.Is(err, ErrMissingData) {
		t.Errorf("expected ErrMissingData, got %v", err)
	}
	if d.Exists(name) {
		t.Error("entry without data file should not exist")
	}

	if err := d.Delete(name); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := d.Delete(name); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestDir_ClearAndTempFiles(t *testing.T) {
	d := newDir(t)
	for _, k := range []string{"a", "b"} {
		n := d.Name(k)
		if err := d.WriteData(n, []byte(k)); err != nil {
			t.Fatal(err)
		}
		if err := d.WriteConfig(n, Config{Key: k, Tag: TagString}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(d.Path, tmpPrefix+"stale.json"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	names, _ := d.Names()
	if len(names) != 2 {
		t.Errorf("temp files must not be listed, got %v", names)
	}

	if err := d.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	entries, _ := os.ReadDir(d.Path)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, got %d entries", len(entries))
	}
}

func TestDir_Touch(t *testing.T) {
	d := newDir(t)
	name := d.Name("k")
	if err := d.WriteData(name, []byte("x")); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := d.Touch(name, at); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	info, err := os.Stat(d.DataPath(name))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(at) {
		t.Errorf("expected mtime %v, got %v", at, info.ModTime())
	}
}

func TestConfig_Expired(t *testing.T) {
	c := Config{SaveTime: 1000, ValidTime: 100}
	if c.Expired(1099) {
		t.Error("should not be expired before saveTime+validTime")
	}
	if !c.Expired(1100) {
		t.Error("should be expired at saveTime+validTime")
	}
	perm := Config{SaveTime: 1000, ValidTime: 0}
	if perm.Expired(1 << 60) {
		t.Error("permanent entries never expire")
	}
}

func TestPayload(t *testing.T) {
	i, err := DecodeInt(EncodeInt(-42), 32)
	if err != nil || i != -42 {
		t.Errorf("int round trip: %d, %v", i, err)
	}
	f, err := DecodeFloat(EncodeFloat(0.1, 32), 32)
	if err != nil || float32(f) != float32(0.1) {
		t.Errorf("float round trip: %v, %v", f, err)
	}
	b, err := DecodeBool(EncodeBool(true))
	if err != nil || !b {
		t.Errorf("bool round trip: %v, %v", b, err)
	}
	if tag, err := ParseTag("SERIALIZED_OBJECT"); err != nil || tag != TagObject {
		t.Errorf("ParseTag = %v, %v", tag, err)
	}
}

func TestDir_NamesSkipsForeignFiles(t *testing.T) {
	d := newDir(t)
	n := d.Name("k")
	if err := d.WriteConfig(n, Config{Key: "k", Tag: TagString}); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"notes.json", "a.json", "README"} {
		if err := os.WriteFile(filepath.Join(d.Path, f), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := d.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 1 || names[0] != n {
		t.Errorf("expected only %s, got %v", n, names)
	}
}
