package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mortuary/internal/infra/blob/core"
)

func TestStorePutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store, bucket := newFakeStore(t, "mortuary/")
	if store.Driver() != core.DriverS3 || store.Location() != "s3://backups/mortuary/" {
		t.Fatalf("unexpected identity %s %s", store.Driver(), store.Location())
	}
	info, err := store.Put(ctx, "records_backup_20240101_000000.csv", strings.NewReader("record_id\n"), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "records_backup_20240101_000000.csv" || info.Size != 10 || info.ContentType != "text/csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, ok := bucket.objects["mortuary/records_backup_20240101_000000.csv"]; !ok {
		t.Fatalf("object not stored under the prefix: %v", bucket.objects)
	}
	if _, err := store.Put(ctx, info.Key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "record_id\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := store.Put(ctx, "other.csv", strings.NewReader("y"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := store.List(ctx, "records_backup_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != info.Key || list[0].Size != 10 {
		t.Fatalf("prefix should be stripped from listed keys: %+v", list)
	}

	existed, err := store.Delete(ctx, info.Key)
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, info.Key)
	if err != nil || existed {
		t.Fatalf("second delete: %v %v", existed, err)
	}
	if _, err := store.Head(ctx, info.Key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, info.Key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestStorePutRejectsEmptyKey(t *testing.T) {
	store, _ := newFakeStore(t, "")
	if _, err := store.Put(context.Background(), "", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key failure")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket required")
	}
	store, err := New(context.Background(), Config{Bucket: "backups", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "id", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Location() != "s3://backups/" {
		t.Fatalf("location %s", store.Location())
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAAAA==\r\n\r\n"
	out, err := decodeAWSChunked([]byte(framed))
	if err != nil || string(out) != "hello world" {
		t.Fatalf("decode: %q %v", out, err)
	}
	if _, err := decodeAWSChunked([]byte("zz\r\nhello")); err == nil {
		t.Fatalf("expected size error")
	}
	if _, err := decodeAWSChunked([]byte("9\r\nshort")); err == nil {
		t.Fatalf("expected truncated body error")
	}
}
